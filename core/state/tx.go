package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"hgigs/storage"
)

// ErrTxClosed is returned by operations on a committed or discarded
// transaction.
var ErrTxClosed = errors.New("state: transaction closed")

// Tx buffers writes in memory and applies them as one atomic batch on Commit.
// Reads observe the transaction's own writes first. A nil buffered value
// marks a deletion.
type Tx struct {
	db     storage.Database
	writes map[string][]byte
	closed bool
}

func (t *Tx) get(key []byte) ([]byte, error) {
	if t.closed {
		return nil, ErrTxClosed
	}
	if value, ok := t.writes[string(key)]; ok {
		if value == nil {
			return nil, storage.ErrNotFound
		}
		return append([]byte(nil), value...), nil
	}
	return t.db.Get(key)
}

func (t *Tx) put(key, value []byte) error {
	if t.closed {
		return ErrTxClosed
	}
	t.writes[string(key)] = append([]byte{}, value...)
	return nil
}

// KVGet decodes the value under key, observing uncommitted writes.
func (t *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	return kvGet(t.get, key, out)
}

// KVPut RLP-encodes value into the transaction buffer.
func (t *Tx) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return t.put(key, encoded)
}

// KVDelete buffers the removal of key.
func (t *Tx) KVDelete(key []byte) error {
	if t.closed {
		return ErrTxClosed
	}
	t.writes[string(key)] = nil
	return nil
}

// Pending reports the number of buffered writes.
func (t *Tx) Pending() int { return len(t.writes) }

// Commit writes every buffered change in a single batch and closes the
// transaction.
func (t *Tx) Commit() error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	if len(t.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.writes))
	for key := range t.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, key := range keys {
		if value := t.writes[key]; value != nil {
			batch.Put([]byte(key), value)
		} else {
			batch.Delete([]byte(key))
		}
	}
	t.writes = nil
	return t.db.Write(batch)
}

// Discard drops the buffered changes. It is safe to call after Commit.
func (t *Tx) Discard() {
	t.closed = true
	t.writes = nil
}
