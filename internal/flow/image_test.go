package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageReference(t *testing.T) {
	for _, v := range []string{"zip://a.png", "http://x/y.png", "https://x/y.jpg", " zip://a.png"} {
		assert.True(t, IsImageReference(v), v)
	}
	for _, v := range []string{"", "a.png", "ftp://x/y.png", "//img.alicdn.com/a.png", "zip:/a.png"} {
		assert.False(t, IsImageReference(v), v)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.png":  ContentTypePNG,
		"A.PNG":  ContentTypePNG,
		"b.jpg":  ContentTypeJPEG,
		"c.jpeg": ContentTypeJPEG,
	}
	for name, want := range tests {
		got, err := ContentTypeFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	_, err := ContentTypeFor("d.gif")
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestResolveArchive(t *testing.T) {
	r := &ImageResolver{Archive: map[string][]byte{"pics/logo.png": {1, 2}}}

	img, err := r.Resolve(context.Background(), "zip://pics/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "logo.png", img.Filename)
	assert.Equal(t, ContentTypePNG, img.ContentType)

	_, err = r.Resolve(context.Background(), "zip://missing.png")
	require.Error(t, err)
	assert.Equal(t, "Zip 压缩包中没有图片 missing.png", err.Error())
}

func TestResolveRemoteRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	r := &ImageResolver{HTTPClient: srv.Client()}
	_, err := r.Resolve(context.Background(), srv.URL+"/a.png")
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestResolveRemoteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := &ImageResolver{HTTPClient: srv.Client()}
	_, err := r.Resolve(context.Background(), srv.URL+"/a.png")
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Contains(t, Message(err), "无法加载图片")
}

func TestResolveRemoteSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentTypePNG)
		if r.URL.Query().Get("chunked") != "" {
			// no Content-Length, so the body itself must be cut off
			w.(http.Flusher).Flush()
		}
		size := 1024
		if r.URL.Path == "/big.png" {
			size = 4096
		}
		_, _ = w.Write(make([]byte, size))
	}))
	defer srv.Close()

	r := &ImageResolver{HTTPClient: srv.Client(), MaxBytes: 1024}

	img, err := r.Resolve(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Len(t, img.Data, 1024)

	for _, ref := range []string{srv.URL + "/big.png", srv.URL + "/big.png?chunked=1"} {
		_, err = r.Resolve(context.Background(), ref)
		var fe *FormatError
		require.True(t, errors.As(err, &fe), ref)
		assert.Contains(t, fe.Message, "超过大小上限 1024")
	}
}

func TestResolveRemoteDefaultSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentTypePNG)
		w.Header().Set("Content-Length", fmt.Sprint(DefaultMaxImageSize+1))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := &ImageResolver{HTTPClient: srv.Client()}
	_, err := r.Resolve(context.Background(), srv.URL+"/huge.png")
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestImageFilename(t *testing.T) {
	assert.Equal(t, "a.png", imageFilename("https://x/a.png", ContentTypePNG))
	assert.Equal(t, "a.jpg", imageFilename("https://x/a.png", ContentTypeJPEG))
	assert.Equal(t, "image.png", imageFilename("https://x/", ContentTypePNG))
	assert.Equal(t, "touming.png", imageFilename("https://x/p/touming?x=1", ContentTypePNG))
}
