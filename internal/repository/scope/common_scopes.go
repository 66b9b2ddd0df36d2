package scope

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}

// ForPreset limits a query to rows owned by one preset.
func ForPreset(id uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("preset_id = ?", id)
	}
}
