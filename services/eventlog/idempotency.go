package eventlog

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
)

// LookupIdempotency returns the stored response for (caller, key).
func (s *Store) LookupIdempotency(ctx context.Context, caller, key string) (IdempotencyKey, error) {
	var record IdempotencyKey
	err := s.db.WithContext(ctx).First(&record, "key = ? AND caller = ?", key, caller).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return IdempotencyKey{}, ErrNotFound
	}
	if err != nil {
		return IdempotencyKey{}, err
	}
	return record, nil
}

// SaveIdempotency persists the first response for a key. Later saves for the
// same (caller, key) are ignored.
func (s *Store) SaveIdempotency(ctx context.Context, record IdempotencyKey) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.nowFn().UTC()
	}
	var existing int64
	if err := s.db.WithContext(ctx).Model(&IdempotencyKey{}).
		Where("key = ? AND caller = ?", record.Key, record.Caller).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// MemoryIdempotency keeps idempotency records in process memory for nodes
// running without a journal database.
type MemoryIdempotency struct {
	mu      sync.Mutex
	records map[[2]string]IdempotencyKey
}

// NewMemoryIdempotency returns an empty in-memory idempotency store.
func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{records: make(map[[2]string]IdempotencyKey)}
}

func (m *MemoryIdempotency) LookupIdempotency(_ context.Context, caller, key string) (IdempotencyKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[[2]string{caller, key}]
	if !ok {
		return IdempotencyKey{}, ErrNotFound
	}
	return record, nil
}

func (m *MemoryIdempotency) SaveIdempotency(_ context.Context, record IdempotencyKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := [2]string{record.Caller, record.Key}
	if _, ok := m.records[id]; ok {
		return nil
	}
	m.records[id] = record
	return nil
}
