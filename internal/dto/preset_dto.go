package dto

import (
	"time"

	"preset-teaching-be/pkg/preset"

	"github.com/google/uuid"
)

type CreatePresetRequest struct {
	SourceKey string                 `json:"source_key" validate:"required,max=200"`
	Name      string                 `json:"name" validate:"max=200"`
	Document  map[string]interface{} `json:"document" validate:"required"`
}

// ReplacePresetRequest overwrites the whole document. Version is the version
// the caller last read.
type ReplacePresetRequest struct {
	Name     string                 `json:"name" validate:"max=200"`
	Document map[string]interface{} `json:"document" validate:"required"`
	Version  int                    `json:"version" validate:"required,gte=1"`
}

type PresetResponse struct {
	Id        uuid.UUID       `json:"id"`
	OwnerKey  string          `json:"owner_key"`
	SourceKey string          `json:"source_key"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Document  preset.Document `json:"document,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type PresetNodesResponse struct {
	PresetId uuid.UUID     `json:"preset_id"`
	Version  int           `json:"version"`
	Nodes    []preset.Node `json:"nodes"`
	InputXml string        `json:"input_xml,omitempty"`
}

type PatchOperation struct {
	Op     string      `json:"op" validate:"required,oneof=add update delete toggle"`
	Path   string      `json:"path" validate:"required"`
	Value  interface{} `json:"value"`
	Reason string      `json:"reason"`
}

type PatchPresetRequest struct {
	Ops    []PatchOperation `json:"ops" validate:"required,min=1,max=50,dive"`
	DryRun bool             `json:"dry_run"`
}

type PatchPresetResponse struct {
	Updated bool               `json:"updated"`
	Version int                `json:"version"`
	Applied []preset.OpOutcome `json:"applied"`
	Failed  []preset.OpOutcome `json:"failed"`
}

type ListRoundsRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=updated no_change no_nodes no_applied plan_error chat_error conflict"`
	Limit  int    `query:"limit" validate:"gte=0,lte=200"`
	Offset int    `query:"offset" validate:"gte=0"`
}

type RoundResponse struct {
	Id            uuid.UUID              `json:"id"`
	BatchKey      string                 `json:"batch_key"`
	Trigger       string                 `json:"trigger"`
	Status        string                 `json:"status"`
	NodeCount     int                    `json:"node_count"`
	Attempts      int                    `json:"attempts"`
	Applied       []preset.OpOutcome     `json:"applied"`
	Failed        []preset.OpOutcome     `json:"failed"`
	Unknown       interface{}            `json:"unknown,omitempty"`
	BeforeMeta    map[string]interface{} `json:"before_meta,omitempty"`
	AfterMeta     map[string]interface{} `json:"after_meta,omitempty"`
	BeforeVersion int                    `json:"before_version"`
	AfterVersion  int                    `json:"after_version"`
	Error         string                 `json:"error,omitempty"`
	DurationMs    int64                  `json:"duration_ms"`
	CreatedAt     time.Time              `json:"created_at"`
}

// PresetUpdatedMessage travels on the in-process bus after a preset write.
type PresetUpdatedMessage struct {
	PresetId  uuid.UUID `json:"preset_id"`
	OwnerKey  string    `json:"owner_key"`
	SourceKey string    `json:"source_key"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	RoundId   uuid.UUID `json:"round_id,omitempty"`
	Trigger   string    `json:"trigger"`
	Applied   int       `json:"applied"`
	Failed    int       `json:"failed"`
	UpdatedAt time.Time `json:"updated_at"`
}
