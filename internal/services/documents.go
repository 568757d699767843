package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/votra/contracts/internal/models"
	"github.com/votra/contracts/validation"
	"gorm.io/gorm"
)

const conflictRetries = 3

// keyedLocks serializes in-process mutations per document id so the state
// machine never observes an illegal transition from two racing writers.
// Cross-process races are caught by the guarded UPDATEs below.
type keyedLocks struct {
	mu sync.Mutex
	m  map[uint]*sync.Mutex
}

func (k *keyedLocks) lock(id uint) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[uint]*sync.Mutex)
	}
	l, ok := k.m[id]
	if !ok {
		l = &sync.Mutex{}
		k.m[id] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// DocumentService owns the document lifecycle state machine. All writes to
// the documents table go through its operations; transitions use guarded
// single-row UPDATEs inside a transaction together with the audit entry, so a
// transition and its audit record commit or roll back as one unit.
type DocumentService struct {
	DB     *gorm.DB
	Ledger *SignatureLedger
	Now    func() time.Time

	locks keyedLocks
}

func NewDocumentService(db *gorm.DB) *DocumentService {
	return &DocumentService{DB: db, Ledger: NewSignatureLedger(db), Now: time.Now}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// withRetry re-runs fn on concurrency conflicts a bounded number of times
// with a short backoff. Validation and state errors pass through untouched;
// retrying them would not help.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = fn()
		if err != ErrConcurrencyConflict {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return err
}

type CreateDocumentInput struct {
	TemplateID     uint
	CounterpartyID uint
	EffectiveDate  time.Time
	ExpirationDate time.Time // zero means template default (effective + validity days)
	Customizations string
}

// Create instantiates a document from an active template in state draft.
func (s *DocumentService) Create(ctx context.Context, in CreateDocumentInput, actorID uint) (*models.Document, error) {
	v := validation.Violations{}
	if in.TemplateID == 0 {
		v["template_id"] = "required"
	}
	if in.CounterpartyID == 0 {
		v["counterparty_id"] = "required"
	}
	if in.EffectiveDate.IsZero() {
		v["effective_date"] = "required"
	}
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}

	var tpl models.Template
	if err := s.DB.WithContext(ctx).Where("id = ? AND active = ?", in.TemplateID, true).First(&tpl).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	var cp models.Counterparty
	if err := s.DB.WithContext(ctx).Where("id = ? AND active = ?", in.CounterpartyID, true).First(&cp).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCounterpartyNotFound
		}
		return nil, err
	}

	expiration := in.ExpirationDate
	if expiration.IsZero() {
		expiration = in.EffectiveDate.AddDate(0, 0, tpl.ValidityDays)
	}
	validation.DateAfter("expiration_date", in.EffectiveDate, expiration, v)
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}

	doc := models.Document{
		CounterpartyID: in.CounterpartyID,
		TemplateID:     tpl.ID,
		Type:           tpl.Type,
		Status:         models.StatusDraft,
		EffectiveDate:  dateOnly(in.EffectiveDate),
		ExpirationDate: dateOnly(expiration),
		CurrentVersion: 1,
		MinSigners:     tpl.MinSigners,
		Customizations: in.Customizations,
		CreatedBy:      actorID,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return recordAudit(tx, actorID, "create", "document", doc.ID, nil, map[string]any{
			"status":          doc.Status,
			"type":            doc.Type,
			"counterparty_id": doc.CounterpartyID,
			"template_id":     doc.TemplateID,
			"expiration_date": doc.ExpirationDate.Format("2006-01-02"),
		}, "document created from template "+tpl.Name)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type UpdateDocumentInput struct {
	Customizations *string
	ExpirationDate *time.Time
}

// Update edits customizations or the expiration date. Legal in draft only;
// after signature the terms are frozen and only renewal or archival may
// change the document.
func (s *DocumentService) Update(ctx context.Context, id uint, in UpdateDocumentInput, actorID uint) (*models.Document, error) {
	if in.Customizations == nil && in.ExpirationDate == nil {
		return nil, &ValidationError{Violations: validation.Violations{"body": "no_fields_to_update"}}
	}
	unlock := s.locks.lock(id)
	defer unlock()

	var doc models.Document
	err := withRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&doc, id).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrDocumentNotFound
				}
				return err
			}
			if doc.Status != models.StatusDraft {
				return &InvalidStateError{Current: doc.Status, Allowed: []string{models.StatusDraft}}
			}
			old := map[string]any{
				"customizations":  doc.Customizations,
				"expiration_date": doc.ExpirationDate.Format("2006-01-02"),
			}
			updates := map[string]any{}
			if in.Customizations != nil {
				updates["customizations"] = *in.Customizations
			}
			if in.ExpirationDate != nil {
				exp := dateOnly(*in.ExpirationDate)
				v := validation.Violations{}
				validation.DateAfter("expiration_date", doc.EffectiveDate, exp, v)
				if !v.Empty() {
					return &ValidationError{Violations: v}
				}
				updates["expiration_date"] = exp
			}
			res := tx.Model(&models.Document{}).
				Where("id = ? AND status = ?", id, models.StatusDraft).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConcurrencyConflict
			}
			if err := tx.First(&doc, id).Error; err != nil {
				return err
			}
			return recordAudit(tx, actorID, "update", "document", doc.ID, old, map[string]any{
				"customizations":  doc.Customizations,
				"expiration_date": doc.ExpirationDate.Format("2006-01-02"),
			}, "draft terms updated")
		})
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type SignerInput struct {
	Name        string
	Email       string
	Title       string
	Affiliation string
	Method      string
}

// RecordSignature appends a signing event to the ledger. When the minimum
// signer set is satisfied while the document is still in draft, the same
// transaction performs the draft -> signed transition and stamps
// signed_date/signed_by, so concurrent callers cannot both claim the edge.
func (s *DocumentService) RecordSignature(ctx context.Context, id uint, signer SignerInput, actorID uint) (*models.Document, error) {
	v := validation.Violations{}
	validation.Required("signer_name", signer.Name, v)
	validation.Required("signer_email", signer.Email, v)
	if signer.Method == "" {
		signer.Method = models.SignatureElectronic
	}
	validation.OneOf("method", signer.Method, models.SignatureMethods(), v)
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}

	unlock := s.locks.lock(id)
	defer unlock()

	var doc models.Document
	err := withRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&doc, id).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrDocumentNotFound
				}
				return err
			}
			if doc.Status == models.StatusArchived {
				return &InvalidStateError{Current: doc.Status, Allowed: []string{
					models.StatusDraft, models.StatusSigned, models.StatusActive, models.StatusRenewed,
				}}
			}
			now := s.Now()
			sig := models.Signature{
				DocumentID:  doc.ID,
				SignerName:  strings.TrimSpace(signer.Name),
				SignerEmail: strings.TrimSpace(signer.Email),
				SignerTitle: signer.Title,
				Affiliation: signer.Affiliation,
				Method:      signer.Method,
				SignedAt:    now,
			}
			if _, err := s.Ledger.Append(tx, &sig); err != nil {
				return err
			}
			transitioned := false
			if doc.Status == models.StatusDraft {
				count, err := s.Ledger.CountFor(tx, doc.ID)
				if err != nil {
					return err
				}
				if count >= int64(doc.MinSigners) {
					res := tx.Model(&models.Document{}).
						Where("id = ? AND status = ?", doc.ID, models.StatusDraft).
						Updates(map[string]any{
							"status":      models.StatusSigned,
							"signed_date": now,
							"signed_by":   sig.SignerName,
						})
					if res.Error != nil {
						return res.Error
					}
					if res.RowsAffected == 0 {
						return ErrConcurrencyConflict
					}
					transitioned = true
				}
			}
			if err := tx.First(&doc, id).Error; err != nil {
				return err
			}
			newVals := map[string]any{
				"status":       doc.Status,
				"signer_name":  sig.SignerName,
				"signer_email": sig.SignerEmail,
				"method":       sig.Method,
			}
			desc := "signature recorded"
			if transitioned {
				desc = "signature recorded, minimum signer set satisfied"
			}
			return recordAudit(tx, actorID, "sign", "document", doc.ID, nil, newVals, desc)
		})
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type RenewInput struct {
	NewExpirationDate time.Time
	Notes             string
}

// Renew extends an existing signed/active/expired/renewed document: new
// expiration date, version bump, and a DocumentVersion row describing the
// amendment. Drafts cannot be renewed; they have never been in force.
func (s *DocumentService) Renew(ctx context.Context, id uint, in RenewInput, actorID uint) (*models.Document, error) {
	allowed := []string{models.StatusSigned, models.StatusActive, models.StatusExpired, models.StatusRenewed}

	unlock := s.locks.lock(id)
	defer unlock()

	var doc models.Document
	err := withRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&doc, id).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrDocumentNotFound
				}
				return err
			}
			if doc.Status == models.StatusDraft || doc.Status == models.StatusArchived {
				return &InvalidStateError{Current: doc.Status, Allowed: allowed}
			}
			today := dateOnly(s.Now())
			v := validation.Violations{}
			if in.NewExpirationDate.IsZero() {
				v["new_expiration_date"] = "required"
			} else if !dateOnly(in.NewExpirationDate).After(today) {
				v["new_expiration_date"] = "must_be_in_future"
			} else {
				// A forward-dated document may only be renewed past its
				// effective date.
				validation.DateAfter("new_expiration_date", doc.EffectiveDate, dateOnly(in.NewExpirationDate), v)
			}
			if !v.Empty() {
				return &ValidationError{Violations: v}
			}
			old := map[string]any{
				"status":          doc.Status,
				"expiration_date": doc.ExpirationDate.Format("2006-01-02"),
				"current_version": doc.CurrentVersion,
			}
			newVersion := doc.CurrentVersion + 1
			res := tx.Model(&models.Document{}).
				Where("id = ? AND status = ? AND current_version = ?", doc.ID, doc.Status, doc.CurrentVersion).
				Updates(map[string]any{
					"status":          models.StatusRenewed,
					"expiration_date": dateOnly(in.NewExpirationDate),
					"renewal_date":    today,
					"current_version": newVersion,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConcurrencyConflict
			}
			summary := in.Notes
			if summary == "" {
				summary = "renewed until " + dateOnly(in.NewExpirationDate).Format("2006-01-02")
			}
			dv := models.DocumentVersion{
				DocumentID:    doc.ID,
				VersionNumber: newVersion,
				ChangeSummary: summary,
				ChangedBy:     actorID,
			}
			if err := tx.Create(&dv).Error; err != nil {
				return err
			}
			if err := tx.First(&doc, id).Error; err != nil {
				return err
			}
			return recordAudit(tx, actorID, "renew", "document", doc.ID, old, map[string]any{
				"status":          doc.Status,
				"expiration_date": doc.ExpirationDate.Format("2006-01-02"),
				"current_version": doc.CurrentVersion,
			}, summary)
		})
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Archive soft-deletes a document: terminal state, record retained for audit.
// Archiving an already archived document is a no-op, not an error.
func (s *DocumentService) Archive(ctx context.Context, id uint, actorID uint) (*models.Document, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	var doc models.Document
	err := withRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&doc, id).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrDocumentNotFound
				}
				return err
			}
			if doc.Status == models.StatusArchived {
				return nil
			}
			old := map[string]any{"status": doc.Status}
			res := tx.Model(&models.Document{}).
				Where("id = ? AND status = ?", doc.ID, doc.Status).
				Update("status", models.StatusArchived)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConcurrencyConflict
			}
			doc.Status = models.StatusArchived
			return recordAudit(tx, actorID, "archive", "document", doc.ID, old,
				map[string]any{"status": models.StatusArchived}, "document archived")
		})
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Get loads one document with its counterparty and template.
func (s *DocumentService) Get(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	err := s.DB.WithContext(ctx).Preload("Counterparty").Preload("Template").First(&doc, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

type DocumentFilter struct {
	CounterpartyID uint
	Status         string
	Type           string
	Limit          int
	Offset         int
}

// List returns documents matching the filter, newest first, with the total
// matching count for pagination.
func (s *DocumentService) List(ctx context.Context, f DocumentFilter) ([]models.Document, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Document{})
	if f.CounterpartyID != 0 {
		q = q.Where("counterparty_id = ?", f.CounterpartyID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var docs []models.Document
	err := q.Order("id desc").Limit(limit).Offset(f.Offset).Find(&docs).Error
	return docs, total, err
}

// Versions returns the amendment history of a document in version order.
func (s *DocumentService) Versions(ctx context.Context, id uint) ([]models.DocumentVersion, error) {
	var versions []models.DocumentVersion
	err := s.DB.WithContext(ctx).
		Where("document_id = ?", id).
		Order("version_number asc").
		Find(&versions).Error
	return versions, err
}
