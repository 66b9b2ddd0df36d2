package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TeachingExample is an append-only request/plan pair used as few-shot guidance.
type TeachingExample struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PresetId  uuid.UUID `gorm:"type:uuid;not null;index"`
	InputXml  string    `gorm:"type:text;not null"`
	PlanXml   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (TeachingExample) TableName() string {
	return "teaching_examples"
}

// TeachingRound is the audit row written for every round, applied or not.
type TeachingRound struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	PresetId      uuid.UUID      `gorm:"type:uuid;not null;index"`
	BatchKey      string         `gorm:"type:varchar(512);not null;index"`
	Trigger       string         `gorm:"type:varchar(32)"`
	Status        string         `gorm:"type:varchar(32);not null;index"`
	NodeCount     int            `gorm:"not null;default:0"`
	Attempts      int            `gorm:"not null;default:0"`
	Applied       datatypes.JSON `gorm:"type:jsonb"`
	Failed        datatypes.JSON `gorm:"type:jsonb"`
	Unknown       datatypes.JSON `gorm:"type:jsonb"`
	BeforeMeta    datatypes.JSON `gorm:"type:jsonb"`
	AfterMeta     datatypes.JSON `gorm:"type:jsonb"`
	BeforeVersion int            `gorm:"not null;default:0"`
	AfterVersion  int            `gorm:"not null;default:0"`
	Conversation  string         `gorm:"type:text"`
	Error         string         `gorm:"type:text"`
	RawReply      string         `gorm:"type:text"`
	DurationMs    int64          `gorm:"not null;default:0"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index"`
}

func (TeachingRound) TableName() string {
	return "teaching_rounds"
}
