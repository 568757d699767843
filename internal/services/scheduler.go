package services

import (
	"context"
	"log"
	"time"

	"github.com/votra/contracts/internal/models"
	"gorm.io/gorm"
)

// Notifier receives renewal reminders for documents approaching expiration.
// Actual delivery (email, webhook) lives outside this service.
type Notifier interface {
	RenewalDue(ctx context.Context, doc models.Document, daysLeft int)
}

// LogNotifier writes reminders to the process log. Default collaborator when
// no delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) RenewalDue(_ context.Context, doc models.Document, daysLeft int) {
	log.Printf("[scheduler] renewal due: document=%d type=%s counterparty=%d expires=%s days_left=%d",
		doc.ID, doc.Type, doc.CounterpartyID, doc.ExpirationDate.Format("2006-01-02"), daysLeft)
}

// ScanResult summarizes one scheduler pass.
type ScanResult struct {
	Scanned  int
	Expired  int
	Reminded int
	Failed   int
}

// ExpirationScheduler periodically scans in-force documents, expiring any
// past their expiration date and emitting reminders for those inside the
// look-ahead window. Each document transition is its own transaction, so a
// cancelled or failed pass leaves no partial state; unscanned documents are
// picked up on the next run.
type ExpirationScheduler struct {
	DB            *gorm.DB
	Interval      time.Duration
	LookaheadDays int
	Notifier      Notifier
	Now           func() time.Time
}

func NewExpirationScheduler(db *gorm.DB, interval time.Duration, lookaheadDays int) *ExpirationScheduler {
	return &ExpirationScheduler{
		DB:            db,
		Interval:      interval,
		LookaheadDays: lookaheadDays,
		Notifier:      LogNotifier{},
		Now:           time.Now,
	}
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (s *ExpirationScheduler) Run(ctx context.Context) {
	if _, err := s.Scan(ctx); err != nil {
		log.Printf("[scheduler] scan error: %v", err)
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Scan(ctx)
			if err != nil {
				log.Printf("[scheduler] scan error: %v", err)
				continue
			}
			if res.Expired > 0 || res.Failed > 0 {
				log.Printf("[scheduler] scanned=%d expired=%d reminded=%d failed=%d",
					res.Scanned, res.Expired, res.Reminded, res.Failed)
			}
		}
	}
}

// Scan runs one pass over all documents in a gate-valid state. Re-running a
// scan with no intervening writes is a no-op: expired documents leave the
// candidate set, and the guarded update below refuses to expire twice. A
// failure on one document is logged and skipped, never aborting the batch.
func (s *ExpirationScheduler) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult
	today := dateOnly(s.Now())

	var docs []models.Document
	if err := s.DB.WithContext(ctx).
		Where("status IN ?", models.ValidStatuses()).
		Order("id asc").
		Find(&docs).Error; err != nil {
		return res, err
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Scanned++
		exp := dateOnly(doc.ExpirationDate)
		switch {
		case exp.Before(today):
			if err := s.expireOne(ctx, doc); err != nil {
				res.Failed++
				log.Printf("[scheduler] expire document=%d failed: %v", doc.ID, err)
				continue
			}
			res.Expired++
		case !exp.After(today.AddDate(0, 0, s.LookaheadDays)):
			if s.Notifier != nil {
				daysLeft := int(exp.Sub(today).Hours() / 24)
				s.Notifier.RenewalDue(ctx, doc, daysLeft)
				res.Reminded++
			}
		}
	}
	return res, nil
}

// expireOne transitions a single document to expired atomically with its
// audit entry. The status and expiration guards make a lost race (a renewal
// or a concurrent scan got there first) a clean no-op: a document whose
// expiration was extended after the scan read it no longer matches.
func (s *ExpirationScheduler) expireOne(ctx context.Context, doc models.Document) error {
	today := dateOnly(s.Now())
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Document{}).
			Where("id = ? AND status = ? AND expiration_date < ?", doc.ID, doc.Status, today).
			Update("status", models.StatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return recordAudit(tx, 0, "expire", "document", doc.ID,
			map[string]any{"status": doc.Status},
			map[string]any{"status": models.StatusExpired},
			"expiration date passed")
	})
}
