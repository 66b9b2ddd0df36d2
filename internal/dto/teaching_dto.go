package dto

import "preset-teaching-be/internal/pkg/logger"

type SubmitTurnRequest struct {
	Scope       string `json:"scope" validate:"max=200"`
	ChatKind    string `json:"chat_kind" validate:"max=50"`
	Participant string `json:"participant" validate:"max=200"`
	Source      string `json:"source" validate:"required,max=200"`
	Text        string `json:"text" validate:"required,max=8000"`
}

type SubmitTurnResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	BatchKey string `json:"batch_key,omitempty"`
	Pending  int    `json:"pending"`
	Flushed  bool   `json:"flushed"`
}

type FlushBatchRequest struct {
	Scope       string `json:"scope"`
	ChatKind    string `json:"chat_kind"`
	Participant string `json:"participant"`
	Source      string `json:"source" validate:"required"`
}

type FlushBatchResponse struct {
	Flushed bool   `json:"flushed"`
	Items   int    `json:"items"`
	Reason  string `json:"reason,omitempty"`
}

type AuditLogRequest struct {
	Level  string `query:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	Limit  int    `query:"limit" validate:"gte=0,lte=500"`
	Offset int    `query:"offset" validate:"gte=0"`
}

type AuditLogResponse struct {
	Entries []logger.LogEntry `json:"entries"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

// TeachingStatusResponse reports the runtime state of the pipeline.
type TeachingStatusResponse struct {
	Enabled   bool   `json:"enabled"`
	Whitelist string `json:"whitelist"`
	Queued    int    `json:"queued"`
	Buffers   int    `json:"buffers"`
}
