// Package images hosts contact images. Only URLs leave this package; image
// bytes are never written to the relational store.
package images

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Daskott/rolodex/shared"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrDownloadFailed is all callers learn about a failed remote download.
var ErrDownloadFailed = errors.New("unable to download image")

// ObjectStore is where image bytes end up.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

type Uploader struct {
	store      ObjectStore
	httpClient *http.Client
	prefix     string
}

// NewUploader returns an Uploader. Without an httpClient, remote images are
// only downloaded from public addresses.
func NewUploader(store ObjectStore, httpClient *http.Client, prefix string) *Uploader {
	if httpClient == nil {
		httpClient = publicOnlyClient(15 * time.Second)
	}
	return &Uploader{store: store, httpClient: httpClient, prefix: strings.Trim(prefix, "/")}
}

// UploadContactImage stores a local image under ownerID and returns its public URL.
func (u *Uploader) UploadContactImage(ctx context.Context, file shared.File, ownerID string) (string, error) {
	const op = "images.UploadContactImage"

	contentType := mediaType(file.ContentType)
	if err := shared.ValidateImage(op, contentType, file.Size); err != nil {
		return "", err
	}

	data, err := readImage(op, file.Content)
	if err != nil {
		return "", err
	}

	return u.put(ctx, op, ownerID, contentType, extension(file.Name, contentType), data)
}

// UploadImageFromURL downloads a remote image and re-hosts it under ownerID.
func (u *Uploader) UploadImageFromURL(ctx context.Context, remoteURL, ownerID string) (string, error) {
	const op = "images.UploadImageFromURL"

	if !shared.IsOptionalURL(remoteURL) || remoteURL == "" {
		return "", shared.Validationf(op, "a valid image url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", shared.E(shared.UploadError, op, err)
	}
	req.Header.Set("Accept", "image/*")

	res, err := u.httpClient.Do(req)
	if err != nil {
		return "", shared.E(shared.UploadError, op, ErrDownloadFailed)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", shared.E(shared.UploadError, op, ErrDownloadFailed)
	}

	contentType := mediaType(res.Header.Get("Content-Type"))
	if err := shared.ValidateImage(op, contentType, res.ContentLength); err != nil {
		return "", shared.E(shared.UploadError, op, errors.New(shared.Message(err)))
	}

	data, err := readImage(op, res.Body)
	if err != nil {
		return "", shared.E(shared.UploadError, op, errors.New(shared.Message(err)))
	}

	return u.put(ctx, op, ownerID, contentType, extension(path.Base(req.URL.Path), contentType), data)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (u *Uploader) put(ctx context.Context, op, ownerID, contentType, ext string, data []byte) (string, error) {
	if ownerID == "" {
		return "", shared.Validationf(op, "owner is required")
	}

	key := path.Join(u.prefix, ownerID, uuid.NewString()+ext)
	publicURL, err := u.store.Put(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return "", shared.E(shared.UploadError, op, err)
	}

	return publicURL, nil
}

// readImage reads at most MaxImageSize bytes, failing when there is more.
func readImage(op string, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, shared.Validationf(op, "file content is required")
	}

	data, err := io.ReadAll(io.LimitReader(r, shared.MaxImageSize+1))
	if err != nil {
		return nil, shared.E(shared.UploadError, op, err)
	}
	if len(data) > shared.MaxImageSize {
		return nil, shared.Validationf(op, "Image size should be less than 5MB")
	}

	return data, nil
}

func mediaType(contentType string) string {
	parsed, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return parsed
}

func extension(name, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 5 {
		return ext
	}

	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// urlJoin appends an escaped object key to a base URL.
func urlJoin(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + (&url.URL{Path: key}).EscapedPath()
}
