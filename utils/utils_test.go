package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	assert.False(t, FileExist(path))
	assert.Nil(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0600))
	assert.Nil(t, WriteFileAtomic(path, []byte(`{"a":2}`), 0600))

	data, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	info, err := os.Stat(path)
	assert.Nil(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1, "No temp files should be left behind")
}
