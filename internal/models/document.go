package models

import "time"

// Document lifecycle states. "active" is accepted as an alias for "signed"
// (some upstream clients use it); both mean post-signature, inside the
// validity window. Terms are editable in "draft" only.
const (
	StatusDraft    = "draft"
	StatusSigned   = "signed"
	StatusActive   = "active"
	StatusExpired  = "expired"
	StatusRenewed  = "renewed"
	StatusArchived = "archived"
)

// ValidStatuses are the states in which a document satisfies gate checks and
// is eligible for expiration scans.
func ValidStatuses() []string { return []string{StatusSigned, StatusActive, StatusRenewed} }

// Document is one MSA or NDA instance bound to a counterparty, derived from a
// template version. State changes go through the documents service only;
// nothing else writes these rows.
type Document struct {
	ID             uint         `gorm:"primaryKey"`
	CounterpartyID uint         `gorm:"not null;index"`
	Counterparty   Counterparty `gorm:"foreignKey:CounterpartyID"`
	TemplateID     uint         `gorm:"not null;index"`
	Template       Template     `gorm:"foreignKey:TemplateID"`
	Type           string       `gorm:"not null;index"` // copied from template at creation
	Status         string       `gorm:"not null;index"`
	EffectiveDate  time.Time    `gorm:"not null"`
	ExpirationDate time.Time    `gorm:"not null;index"`
	SignedDate     *time.Time
	SignedBy       string // signer who completed the minimum signer set
	RenewalDate    *time.Time
	CurrentVersion int    `gorm:"not null;default:1"`
	MinSigners     int    `gorm:"not null;default:1"` // copied from template at creation
	Customizations string `gorm:"type:text"`
	CreatedBy      uint
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
