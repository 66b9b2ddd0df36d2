package entity

import (
	"time"

	"preset-teaching-be/pkg/preset"
	"preset-teaching-be/pkg/teaching"

	"github.com/google/uuid"
)

type Preset struct {
	Id        uuid.UUID
	OwnerKey  string
	SourceKey string
	Name      string
	Document  preset.Document
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TeachingExample struct {
	Id        uuid.UUID
	PresetId  uuid.UUID
	InputXml  string
	PlanXml   string
	CreatedAt time.Time
}

type TeachingRound struct {
	Id            uuid.UUID
	PresetId      uuid.UUID
	BatchKey      string
	Trigger       string
	Status        string
	NodeCount     int
	Attempts      int
	Applied       []preset.OpOutcome
	Failed        []preset.OpOutcome
	Unknown       []teaching.UnknownRef
	BeforeMeta    map[string]interface{}
	AfterMeta     map[string]interface{}
	BeforeVersion int
	AfterVersion  int
	Conversation  string
	Error         string
	RawReply      string
	DurationMs    int64
	CreatedAt     time.Time
}
