package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"hgigs/native/marketplace"
	"hgigs/storage"
)

var errManagerUnavailable = errors.New("state: manager unavailable")

// Manager hands out transactional overlays on top of a key/value database.
// Reads go straight to the database; writes only land through Tx.Commit.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// NewTx opens a transaction overlay.
func (m *Manager) NewTx() (*Tx, error) {
	if m == nil || m.db == nil {
		return nil, errManagerUnavailable
	}
	return &Tx{db: m.db, writes: make(map[string][]byte)}, nil
}

// Begin implements marketplace.Backend.
func (m *Manager) Begin() (marketplace.Tx, error) {
	tx, err := m.NewTx()
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// KVGet reads and RLP-decodes the committed value stored under key. The
// boolean reports whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errManagerUnavailable
	}
	return kvGet(m.db.Get, key, out)
}

// KVPut RLP-encodes value and writes it directly, outside any transaction.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errManagerUnavailable
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func kvGet(get func([]byte) ([]byte, error), key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return true, nil
}
