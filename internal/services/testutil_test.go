package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/votra/contracts/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Role{}, &models.User{}, &models.Counterparty{}, &models.Template{},
		&models.Document{}, &models.Signature{}, &models.DocumentVersion{}, &models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedContractFixtures creates a user, counterparty, and one active MSA
// template with the given minimum signer count.
func seedContractFixtures(t *testing.T, db *gorm.DB, minSigners int) (user models.User, cp models.Counterparty, tpl models.Template) {
	t.Helper()
	role := models.Role{Name: "manager"}
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("role: %v", err)
	}
	user = models.User{Email: "ops@test", Password: "x", RoleID: role.ID, Active: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	cp = models.Counterparty{Name: "Acme Corp", Email: "legal@acme.test", Active: true}
	if err := db.Create(&cp).Error; err != nil {
		t.Fatalf("counterparty: %v", err)
	}
	tpl = models.Template{
		Name: "Standard MSA", Version: 1, Type: models.DocumentTypeMSA,
		Content: "MSA between {{provider_name}} and {{client_name}}.",
		ValidityDays: 365, RenewalDays: 365, MinSigners: minSigners, Active: true,
	}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("template: %v", err)
	}
	return
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseTestDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func countAudit(t *testing.T, db *gorm.DB, action string, entityID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.AuditLog{}).
		Where("action = ? AND entity_type = ? AND entity_id = ?", action, "document", entityID).
		Count(&n).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	return n
}
