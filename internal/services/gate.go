package services

import (
	"context"
	"time"

	"github.com/votra/contracts/internal/models"
	"gorm.io/gorm"
)

// Gate modes per document type. Hard gates block the dependent action; soft
// gates only warn.
const (
	GateModeHard = "hard"
	GateModeSoft = "soft"
)

const defaultGateTimeout = 2 * time.Second

// GateResult is the answer to a validity query. When Valid is true,
// ExpirationDate carries the latest expiration among qualifying documents.
type GateResult struct {
	Valid          bool
	Mode           string
	ExpirationDate *time.Time
}

// GateChecker answers "does this counterparty hold a currently valid MSA/NDA"
// for downstream workflows (SOW creation, invoicing). It reads through the
// same DB handle used for writes, so answers reflect the latest committed
// state. Reads carry a short timeout and fail closed: on any error the gated
// action is denied.
type GateChecker struct {
	DB      *gorm.DB
	Timeout time.Duration
	Modes   map[string]string // document type -> hard|soft
	Now     func() time.Time
}

func NewGateChecker(db *gorm.DB, modes map[string]string) *GateChecker {
	return &GateChecker{DB: db, Timeout: defaultGateTimeout, Modes: modes, Now: time.Now}
}

// Mode returns the configured gate mode for a document type, hard by default.
func (g *GateChecker) Mode(docType string) string {
	if m, ok := g.Modes[docType]; ok && m == GateModeSoft {
		return GateModeSoft
	}
	return GateModeHard
}

// HasValidDocument reports whether at least one document for the counterparty
// and type is in a valid state with expiration_date >= today. The error, when
// non-nil, means the check could not be completed; callers must treat that as
// "not valid".
func (g *GateChecker) HasValidDocument(ctx context.Context, counterpartyID uint, docType string) (GateResult, error) {
	res := GateResult{Valid: false, Mode: g.Mode(docType)}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultGateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	today := dateOnly(g.Now())
	var doc models.Document
	err := g.DB.WithContext(ctx).
		Where("counterparty_id = ? AND type = ?", counterpartyID, docType).
		Where("status IN ?", models.ValidStatuses()).
		Where("expiration_date >= ?", today).
		Order("expiration_date desc").
		First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return res, nil
	}
	if err != nil {
		// fail closed: deny rather than guess
		return res, err
	}
	exp := doc.ExpirationDate
	res.Valid = true
	res.ExpirationDate = &exp
	return res, nil
}
