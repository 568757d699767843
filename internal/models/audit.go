package models

import "time"

// AuditLog is an append-only record of every mutating operation.
// Old/new values are opaque JSON snapshots. Entries are written in the same
// transaction as the mutation they describe and never modified afterwards.
type AuditLog struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index"` // 0 for system actions (scheduler)
	Action      string `gorm:"not null;index"`
	EntityType  string `gorm:"not null;index"`
	EntityID    uint   `gorm:"not null;index"`
	OldValues   string `gorm:"type:text"` // JSON, empty for creates
	NewValues   string `gorm:"type:text"` // JSON
	Description string
	CreatedAt   time.Time `gorm:"index"`
}
