package images

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Daskott/rolodex/utils"
	"github.com/pkg/errors"
)

// DiskStore keeps images on the local filesystem and serves them from
// baseURL. Used in development and by single-host installs.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := utils.CreateDirIfNotExist(dir); err != nil {
		return nil, errors.Wrap(err, "NewDiskStore")
	}
	return &DiskStore{dir: dir, baseURL: baseURL}, nil
}

func (d *DiskStore) Dir() string {
	return d.dir
}

func (d *DiskStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	target := filepath.Join(d.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(target, filepath.Clean(d.dir)+string(os.PathSeparator)) {
		return "", errors.Errorf("invalid object key %q", key)
	}

	if err := utils.CreateDirIfNotExist(filepath.Dir(target)); err != nil {
		return "", errors.Wrap(err, "DiskStore.Put")
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", errors.Wrap(err, "DiskStore.Put")
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", errors.Wrap(err, "DiskStore.Put")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "DiskStore.Put")
	}

	return urlJoin(d.baseURL, key), nil
}
