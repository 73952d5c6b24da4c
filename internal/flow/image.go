package flow

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// ArchiveScheme prefixes a field value that names an entry of the uploaded
// picture archive.
const ArchiveScheme = "zip://"

// DefaultMaxImageSize caps a downloaded image when ImageResolver.MaxBytes
// is not set.
const DefaultMaxImageSize int64 = 32 << 20

const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
)

// Image is a resolved image ready for upload.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageSource turns an image reference into bytes.
type ImageSource interface {
	Resolve(ctx context.Context, ref string) (*Image, error)
}

// IsImageReference reports whether a field value asks for an image upload
// instead of being sent as-is.
func IsImageReference(value string) bool {
	v := strings.TrimSpace(value)
	return strings.HasPrefix(v, ArchiveScheme) ||
		strings.HasPrefix(v, "http://") ||
		strings.HasPrefix(v, "https://")
}

// ContentTypeFor maps a file name to the content type used for upload.
// Only PNG and JPEG are accepted.
func ContentTypeFor(name string) (string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return ContentTypePNG, nil
	case ".jpg", ".jpeg":
		return ContentTypeJPEG, nil
	}
	return "", &FormatError{Ref: name, Message: fmt.Sprintf("只支持 PNG 和 JPG 图片格式: %s", name)}
}

// ImageResolver resolves zip:// references against Archive and http(s)
// references with HTTPClient. Downloads larger than MaxBytes are rejected.
type ImageResolver struct {
	Archive    map[string][]byte
	HTTPClient *http.Client
	MaxBytes   int64
}

// Resolve implements ImageSource.
func (r *ImageResolver) Resolve(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, ArchiveScheme):
		return r.fromArchive(strings.TrimPrefix(ref, ArchiveScheme))
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.download(ctx, ref)
	}
	return nil, &FormatError{Ref: ref, Message: fmt.Sprintf("不是图片地址: %s", ref)}
}

func (r *ImageResolver) fromArchive(name string) (*Image, error) {
	data, ok := r.Archive[name]
	if !ok {
		return nil, &FormatError{Ref: name, Message: fmt.Sprintf("Zip 压缩包中没有图片 %s", name)}
	}
	contentType, err := ContentTypeFor(name)
	if err != nil {
		return nil, err
	}
	return &Image{Filename: path.Base(name), ContentType: contentType, Data: data}, nil
}

func (r *ImageResolver) download(ctx context.Context, rawURL string) (*Image, error) {
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FormatError{Ref: rawURL, Message: fmt.Sprintf("无效的图片地址 %s", rawURL)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: "download image", Err: fmt.Errorf("无法加载图片 %s: %w", rawURL, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Op: "download image", Err: fmt.Errorf("无法加载图片 %s (status %d)", rawURL, resp.StatusCode)}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != ContentTypePNG && mediaType != ContentTypeJPEG {
		return nil, &FormatError{Ref: rawURL, Message: fmt.Sprintf("只支持 PNG 和 JPG 图片格式: %s (%s)", rawURL, mediaType)}
	}

	limit := r.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageSize
	}
	tooLarge := &FormatError{Ref: rawURL, Message: fmt.Sprintf("图片 %s 超过大小上限 %d 字节", rawURL, limit)}
	if resp.ContentLength > limit {
		return nil, tooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &RemoteError{Op: "download image", Err: fmt.Errorf("无法加载图片 %s: %w", rawURL, err)}
	}
	if int64(len(data)) > limit {
		return nil, tooLarge
	}
	return &Image{Filename: imageFilename(rawURL, mediaType), ContentType: mediaType, Data: data}, nil
}

// imageFilename derives an upload file name from the URL path, fixing the
// extension to match the served content type.
func imageFilename(rawURL, contentType string) string {
	name := "image"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	ext := ".png"
	if contentType == ContentTypeJPEG {
		ext = ".jpg"
	}
	if got, err := ContentTypeFor(name); err == nil && got == contentType {
		return name
	}
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}
