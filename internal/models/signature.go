package models

import "time"

// Signature methods.
const (
	SignatureElectronic = "electronic"
	SignatureManual     = "manual"
	SignatureAttested   = "attested"
)

func SignatureMethods() []string {
	return []string{SignatureElectronic, SignatureManual, SignatureAttested}
}

// Signature is an append-only signing event for a document. Rows are never
// updated or deleted; a correction is a new Signature plus a DocumentVersion
// explaining it.
type Signature struct {
	ID          uint     `gorm:"primaryKey"`
	DocumentID  uint     `gorm:"not null;index"`
	Document    Document `gorm:"foreignKey:DocumentID"`
	SignerName  string   `gorm:"not null"`
	SignerEmail string   `gorm:"not null"`
	SignerTitle string
	Affiliation string
	Method      string    `gorm:"not null"` // electronic, manual, attested
	SignedAt    time.Time `gorm:"not null;index"`
	CreatedAt   time.Time
}
