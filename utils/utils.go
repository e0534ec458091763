package utils

import (
	"os"
	"path/filepath"
)

// FileExist reports whether anything exists at filePath.
func FileExist(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// CreateDirIfNotExist creates dir and any missing parents.
func CreateDirIfNotExist(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// WriteFileAtomic replaces the file at path with data. Readers see either the
// old or the new content, never a mix.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := CreateDirIfNotExist(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
