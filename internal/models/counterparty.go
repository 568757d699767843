package models

import "time"

// Counterparty is the external client/organization bound by document instances.
type Counterparty struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null;index"`
	Email        string `gorm:"not null"`
	Company      string
	ContactName  string
	PaymentTerms int  `gorm:"default:30"` // days, used by downstream invoicing
	Active       bool `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
