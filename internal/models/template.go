package models

import "time"

// Document types governed by templates.
const (
	DocumentTypeMSA = "msa"
	DocumentTypeNDA = "nda"
)

func DocumentTypes() []string { return []string{DocumentTypeMSA, DocumentTypeNDA} }

// Template is a reusable contract template. A given (name, version) pair is
// immutable: changes to content produce a new version row, and retiring a
// template flips Active rather than deleting anything.
type Template struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null;index;uniqueIndex:idx_template_name_version"`
	Version      int    `gorm:"not null;default:1;uniqueIndex:idx_template_name_version"`
	Type         string `gorm:"not null;index"` // "msa" or "nda"
	Content      string `gorm:"type:text"`      // body with {{placeholder}} fields
	ValidityDays int    `gorm:"not null;default:365"`
	RenewalDays  int    `gorm:"not null;default:365"`
	MinSigners   int    `gorm:"not null;default:1"`
	Active       bool   `gorm:"default:true"`
	CreatedBy    uint
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
