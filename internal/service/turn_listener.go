package service

import (
	"context"

	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/pkg/events"
	pktNats "preset-teaching-be/pkg/nats"
)

const turnConsumerName = "preset-teaching-turns"

// TurnSource delivers conversation turn events. *pktNats.Subscriber
// implements it.
type TurnSource interface {
	Subscribe(ctx context.Context, eventType, durable string, handler pktNats.EventHandler) error
}

// TurnListener feeds conversation turns from the event bus into the
// teaching service.
type TurnListener struct {
	source   TurnSource
	teaching ITeachingService
	logger   logger.ILogger
}

func NewTurnListener(source TurnSource, teaching ITeachingService, log logger.ILogger) *TurnListener {
	return &TurnListener{source: source, teaching: teaching, logger: log}
}

func (l *TurnListener) Start(ctx context.Context) error {
	if err := l.source.Subscribe(ctx, events.TypeConversationTurn, turnConsumerName, l.handleEvent); err != nil {
		return err
	}
	l.logger.Info("TURN_LISTENER", "Listening for conversation turns", nil)
	return nil
}

func (l *TurnListener) handleEvent(ctx context.Context, event events.Event) error {
	turn, err := events.ConversationTurnFrom(event)
	if err != nil {
		// redelivery cannot fix a malformed turn
		l.logger.Warn("TURN_LISTENER", "Skipping malformed turn", map[string]interface{}{"error": err.Error()})
		return nil
	}

	// bus turns come from internal producers and are not bound to an owner
	res, err := l.teaching.SubmitTurn(ctx, "", &dto.SubmitTurnRequest{
		Scope:       turn.Scope,
		ChatKind:    turn.ChatKind,
		Participant: turn.Participant,
		Source:      turn.Source,
		Text:        turn.Text,
	})
	if err != nil {
		return err
	}
	if !res.Accepted {
		l.logger.Debug("TURN_LISTENER", "Turn not buffered", map[string]interface{}{"batch_key": res.BatchKey, "reason": res.Reason})
	}
	return nil
}
