package events

import (
	"fmt"
	"strings"
	"time"
)

const (
	TypePresetUpdated    = "PRESET_UPDATED"
	TypeConversationTurn = "CONVERSATION_TURN"
)

// Event is anything that can travel over the bus.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Subject is the bus subject an event type is published on.
func Subject(eventType string) string {
	return "events." + eventType
}

// TypeFromSubject reverses Subject.
func TypeFromSubject(subject string) string {
	return strings.TrimPrefix(subject, "events.")
}

// PresetUpdated announces a new preset version produced by a teaching round
// or a manual patch.
type PresetUpdated struct {
	PresetId  string
	Version   int
	RoundId   string
	Trigger   string
	Applied   int
	Failed    int
	Name      string
	UpdatedAt time.Time
}

func (e PresetUpdated) EventType() string { return TypePresetUpdated }

func (e PresetUpdated) Payload() map[string]interface{} {
	return map[string]interface{}{
		"preset_id": e.PresetId,
		"version":   e.Version,
		"round_id":  e.RoundId,
		"trigger":   e.Trigger,
		"applied":   e.Applied,
		"failed":    e.Failed,
		"name":      e.Name,
	}
}

func (e PresetUpdated) Timestamp() time.Time { return e.UpdatedAt }

// ConversationTurn is one utterance observed by the conversational agent.
type ConversationTurn struct {
	Scope       string
	ChatKind    string
	Participant string
	Source      string
	Text        string
	At          time.Time
}

func (e ConversationTurn) EventType() string { return TypeConversationTurn }

func (e ConversationTurn) Payload() map[string]interface{} {
	return map[string]interface{}{
		"scope":       e.Scope,
		"chat_kind":   e.ChatKind,
		"participant": e.Participant,
		"source":      e.Source,
		"text":        e.Text,
	}
}

func (e ConversationTurn) Timestamp() time.Time { return e.At }

// ConversationTurnFrom decodes a turn from a generic payload.
func ConversationTurnFrom(ev Event) (ConversationTurn, error) {
	p := ev.Payload()
	turn := ConversationTurn{
		Scope:       stringField(p, "scope"),
		ChatKind:    stringField(p, "chat_kind"),
		Participant: stringField(p, "participant"),
		Source:      stringField(p, "source"),
		Text:        stringField(p, "text"),
		At:          ev.Timestamp(),
	}
	if turn.Source == "" {
		return turn, fmt.Errorf("conversation turn without source")
	}
	return turn, nil
}

func stringField(p map[string]interface{}, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}
