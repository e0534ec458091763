package session

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/Daskott/rolodex/shared"
	"github.com/Daskott/rolodex/utils"
	"github.com/pkg/errors"
)

// Persisted is what survives between runs of the client.
type Persisted struct {
	Session      *shared.Session `json:"session,omitempty"`
	CodeVerifier string          `json:"code_verifier,omitempty"`
}

func (p Persisted) empty() bool {
	return p.Session == nil && p.CodeVerifier == ""
}

type Store interface {
	Load() (Persisted, error)
	Save(Persisted) error
}

// FileStore keeps the session in a JSON file readable only by its owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (Persisted, error) {
	persisted := Persisted{}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return persisted, nil
	}
	if err != nil {
		return persisted, errors.Wrap(err, "read session file")
	}

	if err := json.Unmarshal(data, &persisted); err != nil {
		return Persisted{}, errors.Wrap(err, "decode session file")
	}

	return persisted, nil
}

// Save writes persisted, or removes the file when there is nothing to keep.
func (f *FileStore) Save(persisted Persisted) error {
	if persisted.empty() {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove session file")
		}
		return nil
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return err
	}

	return errors.Wrap(utils.WriteFileAtomic(f.path, data, 0600), "write session file")
}

// MemoryStore keeps the session for the life of the process only.
type MemoryStore struct {
	mu        sync.Mutex
	persisted Persisted
}

func (m *MemoryStore) Load() (Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persisted, nil
}

func (m *MemoryStore) Save(persisted Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted = persisted
	return nil
}
