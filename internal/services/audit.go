package services

import (
	"encoding/json"

	"github.com/votra/contracts/internal/models"
	"gorm.io/gorm"
)

// recordAudit writes an audit entry inside the caller's transaction so the
// entry commits atomically with the mutation it describes. userID 0 marks a
// system actor (scheduler).
func recordAudit(tx *gorm.DB, userID uint, action, entityType string, entityID uint, oldValues, newValues map[string]any, description string) error {
	entry := models.AuditLog{
		UserID:      userID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
	}
	if oldValues != nil {
		b, err := json.Marshal(oldValues)
		if err != nil {
			return err
		}
		entry.OldValues = string(b)
	}
	if newValues != nil {
		b, err := json.Marshal(newValues)
		if err != nil {
			return err
		}
		entry.NewValues = string(b)
	}
	return tx.Create(&entry).Error
}

// AuditFilter narrows audit log queries; zero values mean "any".
type AuditFilter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	Action     string
	Limit      int
	Offset     int
}

// ListAuditLogs returns audit entries matching the filter, newest first.
func ListAuditLogs(db *gorm.DB, f AuditFilter) ([]models.AuditLog, error) {
	q := db.Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var logs []models.AuditLog
	err := q.Order("id desc").Limit(limit).Offset(f.Offset).Find(&logs).Error
	return logs, err
}
