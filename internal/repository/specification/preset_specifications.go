package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByOwner struct {
	OwnerKey string
}

func (s ByOwner) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("owner_key = ?", s.OwnerKey)
}

// BySource finds the preset a conversation teaches, keyed by its source id.
type BySource struct {
	SourceKey string
}

func (s BySource) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_key = ?", s.SourceKey)
}

type ByPreset struct {
	PresetId uuid.UUID
}

func (s ByPreset) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("preset_id = ?", s.PresetId)
}

type ByRoundStatus struct {
	Status string
}

func (s ByRoundStatus) Apply(db *gorm.DB) *gorm.DB {
	if s.Status == "" {
		return db
	}
	return db.Where("status = ?", s.Status)
}
