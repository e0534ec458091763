package images

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Daskott/rolodex/shared"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUploader(t *testing.T) (*Uploader, string) {
	return newTestUploaderWithClient(t, nil)
}

func newTestUploaderWithClient(t *testing.T, httpClient *http.Client) (*Uploader, string) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "https://cdn.test/images")
	require.Nil(t, err)

	return NewUploader(store, httpClient, "/contacts/"), dir
}

func TestDiskStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(filepath.Join(dir, "nested"), "https://cdn.test/images/")
	require.Nil(t, err)

	publicURL, err := store.Put(context.Background(), "u1/ada lovelace.png", "image/png", strings.NewReader("png"))
	assert.Nil(t, err)
	assert.Equal(t, "https://cdn.test/images/u1/ada%20lovelace.png", publicURL)

	data, err := os.ReadFile(filepath.Join(dir, "nested", "u1", "ada lovelace.png"))
	assert.Nil(t, err)
	assert.Equal(t, "png", string(data))
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "https://cdn.test/images")
	require.Nil(t, err)

	_, err = store.Put(context.Background(), "../outside.png", "image/png", strings.NewReader("png"))
	assert.NotNil(t, err)
}

func TestUploadContactImage(t *testing.T) {
	uploader, dir := newTestUploader(t)

	publicURL, err := uploader.UploadContactImage(context.Background(), shared.File{
		Name:        "ada.PNG",
		ContentType: "image/png",
		Size:        3,
		Content:     strings.NewReader("png"),
	}, "u1")

	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(publicURL, "https://cdn.test/images/contacts/u1/"))
	assert.True(t, strings.HasSuffix(publicURL, ".png"))

	files, _ := filepath.Glob(filepath.Join(dir, "contacts", "u1", "*.png"))
	assert.Len(t, files, 1)
}

func TestUploadContactImageValidation(t *testing.T) {
	uploader, _ := newTestUploader(t)
	ctx := context.Background()

	_, err := uploader.UploadContactImage(ctx, shared.File{Name: "cv.pdf", ContentType: "application/pdf", Size: 3, Content: strings.NewReader("pdf")}, "u1")
	assert.Equal(t, "Please select an image file", shared.Message(err))

	_, err = uploader.UploadContactImage(ctx, shared.File{Name: "big.png", ContentType: "image/png", Size: shared.MaxImageSize + 1, Content: strings.NewReader("")}, "u1")
	assert.Equal(t, "Image size should be less than 5MB", shared.Message(err))

	// the declared size is checked, but so is what is actually read
	oversized := bytes.NewReader(make([]byte, shared.MaxImageSize+1))
	_, err = uploader.UploadContactImage(ctx, shared.File{Name: "big.png", ContentType: "image/png", Size: 10, Content: oversized}, "u1")
	assert.True(t, shared.IsKind(err, shared.ValidationError))

	_, err = uploader.UploadContactImage(ctx, shared.File{Name: "ada.png", ContentType: "image/png", Size: 3, Content: strings.NewReader("png")}, "")
	assert.True(t, shared.IsKind(err, shared.ValidationError), "An owner is required")
}

func TestUploadImageFromURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ada.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	uploader, dir := newTestUploaderWithClient(t, ts.Client())
	ctx := context.Background()

	publicURL, err := uploader.UploadImageFromURL(ctx, ts.URL+"/ada.jpg", "u1")
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(publicURL, ".jpg"))

	files, _ := filepath.Glob(filepath.Join(dir, "contacts", "u1", "*.jpg"))
	require.Len(t, files, 1)
	data, _ := os.ReadFile(files[0])
	assert.Equal(t, "jpeg", string(data))

	_, err = uploader.UploadImageFromURL(ctx, ts.URL+"/page", "u1")
	assert.True(t, shared.IsKind(err, shared.UploadError))
	assert.Equal(t, "Please select an image file", shared.Message(err))

	_, err = uploader.UploadImageFromURL(ctx, ts.URL+"/missing.png", "u1")
	assert.True(t, shared.IsKind(err, shared.UploadError))
	assert.True(t, errors.Is(err, ErrDownloadFailed))
	assert.NotContains(t, shared.Message(err), "404", "Upstream statuses should not be echoed")

	_, err = uploader.UploadImageFromURL(ctx, "not a url", "u1")
	assert.True(t, shared.IsKind(err, shared.ValidationError))
}

func TestUploadImageFromURLRejectsInternalHosts(t *testing.T) {
	hit := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	uploader, _ := newTestUploader(t)

	for _, target := range []string{ts.URL + "/admin", "http://169.254.169.254/latest/meta-data/"} {
		_, err := uploader.UploadImageFromURL(context.Background(), target, "u1")

		assert.True(t, shared.IsKind(err, shared.UploadError), target)
		assert.Equal(t, ErrDownloadFailed.Error(), shared.Message(err), target)
	}
	assert.False(t, hit, "Loopback servers should never be reached")
}

func TestCheckPublicAddress(t *testing.T) {
	cases := map[string]bool{
		"93.184.216.34:443":         true,
		"[2606:4700::1111]:443":     true,
		"127.0.0.1:80":              false,
		"10.1.2.3:80":               false,
		"172.16.0.1:80":             false,
		"192.168.1.1:80":            false,
		"169.254.169.254:80":        false,
		"100.64.0.1:80":             false,
		"0.0.0.0:80":                false,
		"224.0.0.1:80":              false,
		"[::1]:80":                  false,
		"[fe80::1]:80":              false,
		"[fd00::1]:80":              false,
		"[::ffff:127.0.0.1]:80":     false,
		"[::ffff:93.184.216.34]:80": true,
	}

	for address, allowed := range cases {
		err := checkPublicAddress(address)
		assert.Equal(t, allowed, err == nil, "checkPublicAddress(%q) = %v", address, err)
	}
}
