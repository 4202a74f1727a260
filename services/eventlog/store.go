package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hgigs/core/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// ErrNotFound is returned when a lookup has no matching row.
var ErrNotFound = errors.New("eventlog: record not found")

// Entry is the externally visible form of a journal record.
type Entry struct {
	Seq        uint64            `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Store appends events to a relational journal. It implements events.Emitter
// so it can sit directly behind the marketplace engine.
type Store struct {
	db     *gorm.DB
	log    *slog.Logger
	nowFn  func() time.Time
	closer func() error
}

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("eventlog: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", driver, err)
	}
	store, err := New(db)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		store.closer = sqlDB.Close
	}
	return store, nil
}

// New wraps an existing gorm handle, migrating the journal tables.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventlog: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{db: db, log: slog.Default(), nowFn: time.Now}, nil
}

// SetLogger overrides the logger used to report journal write failures.
func (s *Store) SetLogger(log *slog.Logger) {
	if s != nil && log != nil {
		s.log = log
	}
}

// SetNowFunc overrides the clock, primarily for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	if s != nil && now != nil {
		s.nowFn = now
	}
}

// DB exposes the underlying handle for components sharing the journal database.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool when the store opened it.
func (s *Store) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// Emit implements events.Emitter. The engine has already committed when
// events are emitted, so a journal failure is logged rather than returned.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	if _, err := s.Append(context.Background(), evt); err != nil {
		s.log.Error("eventlog append failed", slog.String("event", evt.EventType()), slog.Any("error", err))
	}
}

// Append journals evt and returns the stored entry.
func (s *Store) Append(ctx context.Context, evt events.Event) (Entry, error) {
	attrs := map[string]string{}
	if payload := events.Payload(evt); payload != nil {
		for k, v := range payload.Attributes {
			attrs[k] = v
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return Entry{}, err
	}
	record := Record{
		EventID:    uuid.NewString(),
		Type:       evt.EventType(),
		Attributes: string(encoded),
		CreatedAt:  s.nowFn().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Entry{}, err
	}
	return toEntry(record)
}

// List returns up to limit entries with a sequence greater than after, in
// ascending order. A non-positive limit selects DefaultPageSize.
func (s *Store) List(ctx context.Context, after uint64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	var records []Record
	err := s.db.WithContext(ctx).
		Where("seq > ?", after).
		Order("seq ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(records))
	for _, record := range records {
		entry, err := toEntry(record)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Latest returns the highest journaled sequence, or zero when empty.
func (s *Store) Latest(ctx context.Context) (uint64, error) {
	var record Record
	err := s.db.WithContext(ctx).Order("seq DESC").Limit(1).Find(&record).Error
	if err != nil {
		return 0, err
	}
	return record.Seq, nil
}

func toEntry(record Record) (Entry, error) {
	attrs := map[string]string{}
	if record.Attributes != "" {
		if err := json.Unmarshal([]byte(record.Attributes), &attrs); err != nil {
			return Entry{}, fmt.Errorf("eventlog: decode attributes of %d: %w", record.Seq, err)
		}
	}
	return Entry{
		Seq:        record.Seq,
		ID:         record.EventID,
		Type:       record.Type,
		Attributes: attrs,
		CreatedAt:  record.CreatedAt,
	}, nil
}

var _ events.Emitter = (*Store)(nil)
