package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/votra/contracts/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectAndMigrate() (*gorm.DB, error) {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check the environment configuration")
	}
	var db *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		fmt.Println("Retrying DB connection...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	// Basic connectivity test
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	// Print masked DSN once for diagnostics (before migrations for visibility)
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)

	// MIGRATIONS=1 runs sql migrations via golang-migrate; otherwise fall back
	// to AutoMigrate (dev convenience).
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range ModelsToMigrate() {
			if migErr := db.AutoMigrate(m); migErr != nil {
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
	}

	// sanity check: ensure required core tables exist
	for _, table := range []string{"roles", "users", "templates", "documents", "audit_logs"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	// Seeding only when explicitly requested (e.g. development) via DB_SEED=1|true
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		Seed(db)
	}
	return db, nil
}

// ModelsToMigrate lists every persisted model, in FK dependency order.
func ModelsToMigrate() []interface{} {
	return []interface{}{
		&models.Role{}, &models.User{}, &models.Counterparty{}, &models.Template{},
		&models.Document{}, &models.Signature{}, &models.DocumentVersion{}, &models.AuditLog{},
	}
}

// Seed inserts baseline roles and the two starter contract templates.
// Idempotent: existing rows are left untouched.
func Seed(db *gorm.DB) {
	baseRoles := []models.Role{
		{Name: "admin", Description: "Manages templates and users"},
		{Name: "manager", Description: "Creates and renews documents"},
		{Name: "member", Description: "Read-only access"},
	}
	for _, r := range baseRoles {
		var existing models.Role
		if err := db.Where("name = ?", r.Name).First(&existing).Error; err == gorm.ErrRecordNotFound {
			db.Create(&r)
		}
	}
	baseTemplates := []models.Template{
		{
			Name: "Standard MSA", Type: models.DocumentTypeMSA, Version: 1,
			Content: "MASTER SERVICE AGREEMENT\n\nThis agreement is made between {{provider_name}} and {{client_name}} " +
				"effective {{effective_date}}.\n\nServices are billed at the rates agreed in each statement of work.\n",
			ValidityDays: 365, RenewalDays: 365, MinSigners: 2, Active: true,
		},
		{
			Name: "Mutual NDA", Type: models.DocumentTypeNDA, Version: 1,
			Content: "MUTUAL NON-DISCLOSURE AGREEMENT\n\nBetween {{provider_name}} and {{client_name}}.\n\n" +
				"Each party agrees to keep the other's confidential information in confidence.\n",
			ValidityDays: 730, RenewalDays: 730, MinSigners: 1, Active: true,
		},
	}
	for _, t := range baseTemplates {
		var existing models.Template
		if err := db.Where("name = ? AND version = ?", t.Name, t.Version).First(&existing).Error; err == gorm.ErrRecordNotFound {
			db.Create(&t)
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
