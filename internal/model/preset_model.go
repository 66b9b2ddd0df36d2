package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Preset is the persisted behavior document of one agent.
type Preset struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	OwnerKey  string         `gorm:"type:varchar(255);not null;index"`
	SourceKey string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_presets_source_key,where:deleted_at IS NULL"`
	Name      string         `gorm:"type:varchar(255)"`
	Document  datatypes.JSON `gorm:"type:jsonb;not null"`
	Version   int            `gorm:"not null;default:1"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Preset) TableName() string {
	return "presets"
}
