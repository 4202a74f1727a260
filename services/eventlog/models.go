package eventlog

import (
	"time"

	"gorm.io/gorm"
)

// Record is one journaled marketplace event.
type Record struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	EventID    string    `gorm:"size:36;uniqueIndex"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// IdempotencyKey stores the first response produced for a client supplied key.
type IdempotencyKey struct {
	Key         string `gorm:"primaryKey;size:128"`
	Caller      string `gorm:"primaryKey;size:96"`
	RequestID   string `gorm:"size:64"`
	Fingerprint string `gorm:"size:64"`
	Method      string `gorm:"size:8"`
	Path        string `gorm:"size:255"`
	Status      int
	Response    string `gorm:"type:text"`
	CreatedAt   time.Time
}

// AutoMigrate performs all schema migrations for the journal.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Record{},
		&IdempotencyKey{},
	)
}
