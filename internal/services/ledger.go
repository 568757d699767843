package services

import (
	"context"

	"github.com/votra/contracts/internal/models"
	"gorm.io/gorm"
)

// SignatureLedger is the append-only store of signing events. No update or
// delete is exposed: a correction is a superseding Signature plus a
// DocumentVersion explaining it.
type SignatureLedger struct {
	DB *gorm.DB
}

func NewSignatureLedger(db *gorm.DB) *SignatureLedger { return &SignatureLedger{DB: db} }

// Append inserts a signature record. When tx is non-nil the insert joins the
// caller's transaction so it commits with the document transition.
func (l *SignatureLedger) Append(tx *gorm.DB, sig *models.Signature) (uint, error) {
	db := tx
	if db == nil {
		db = l.DB
	}
	if err := db.Create(sig).Error; err != nil {
		return 0, err
	}
	return sig.ID, nil
}

// ListFor returns all signatures for a document ordered by signing time.
// The id tiebreak keeps iteration order stable across restarts.
func (l *SignatureLedger) ListFor(ctx context.Context, documentID uint) ([]models.Signature, error) {
	var sigs []models.Signature
	err := l.DB.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("signed_at asc, id asc").
		Find(&sigs).Error
	return sigs, err
}

// CountFor returns the number of signatures recorded for a document, within
// the caller's transaction when tx is non-nil.
func (l *SignatureLedger) CountFor(tx *gorm.DB, documentID uint) (int64, error) {
	db := tx
	if db == nil {
		db = l.DB
	}
	var n int64
	err := db.Model(&models.Signature{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}
