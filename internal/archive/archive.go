// Package archive reads uploaded picture archives and builds the zip
// downloads returned by the article image flow.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// DefaultMaxSize bounds the total uncompressed size read from one archive
const DefaultMaxSize int64 = 256 << 20

// ReadEntries returns every regular file of a zip archive keyed by its entry
// name as stored in the archive.
func ReadEntries(data []byte, maxSize int64) (map[string][]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid zip archive: %w", err)
	}

	entries := make(map[string][]byte, len(r.File))
	var total int64
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		content, err := readFile(f, maxSize-total)
		if err != nil {
			return nil, err
		}
		total += int64(len(content))
		entries[f.Name] = content
	}
	return entries, nil
}

func readFile(f *zip.File, remaining int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, remaining+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if int64(len(content)) > remaining {
		return nil, fmt.Errorf("zip archive is too large")
	}
	return content, nil
}

// Entry is one file written by Build
type Entry struct {
	Name string
	Data []byte
}

// Build writes entries, in order, into a new zip archive
func Build(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish zip archive: %w", err)
	}
	return buf.Bytes(), nil
}
