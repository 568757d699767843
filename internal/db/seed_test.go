package db

import (
	"fmt"
	"testing"

	"github.com/votra/contracts/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSeedIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, m := range ModelsToMigrate() {
		if err := conn.AutoMigrate(m); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	Seed(conn)
	Seed(conn)

	var roles int64
	if err := conn.Model(&models.Role{}).Count(&roles).Error; err != nil {
		t.Fatalf("count roles: %v", err)
	}
	if roles != 3 {
		t.Fatalf("expected 3 roles, got %d", roles)
	}
	var templates int64
	if err := conn.Model(&models.Template{}).Count(&templates).Error; err != nil {
		t.Fatalf("count templates: %v", err)
	}
	if templates != 2 {
		t.Fatalf("expected 2 templates, got %d", templates)
	}
	var tpl models.Template
	if err := conn.Where("type = ?", models.DocumentTypeMSA).First(&tpl).Error; err != nil {
		t.Fatalf("msa template: %v", err)
	}
	if tpl.MinSigners != 2 || !tpl.Active {
		t.Fatalf("unexpected msa template: %+v", tpl)
	}
}
