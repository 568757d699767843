package models

import "time"

// DocumentVersion records one amendment of a document's terms (renewal,
// correction). Versions are strictly ordered per document with no gaps.
type DocumentVersion struct {
	ID            uint `gorm:"primaryKey"`
	DocumentID    uint `gorm:"not null;index;uniqueIndex:idx_doc_version"`
	VersionNumber int  `gorm:"not null;uniqueIndex:idx_doc_version"`
	ChangeSummary string
	ChangedBy     uint
	CreatedAt     time.Time
}
