package models

import (
	"os"

	"github.com/Daskott/rolodex/shared"
)

// InitializeTestDb opens a fresh encrypted sqlite database in a temp directory.
// The returned cleanup closes the store and removes the directory.
func InitializeTestDb() (*Store, func(), error) {
	dir, err := os.MkdirTemp("", "rolodex-test-db")
	if err != nil {
		return nil, nil, err
	}

	store, err := Open(shared.DatabaseConfig{Driver: "sqlite", PassPhrase: "test-passphrase"}, dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(dir)
	}

	return store, cleanup, nil
}
