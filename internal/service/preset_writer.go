package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/repository/contract"
	"preset-teaching-be/internal/repository/unitofwork"
	"preset-teaching-be/pkg/preset"
)

var (
	ErrPresetNotFound  = errors.New("preset not found")
	ErrVersionConflict = contract.ErrVersionConflict
	ErrDuplicateSource = contract.ErrDuplicateSource
	ErrInvalidDocument = errors.New("preset document must be a JSON object")
)

// Round triggers.
const (
	TriggerBatch  = "batch"
	TriggerTTL    = "ttl"
	TriggerManual = "manual"
	TriggerPatch  = "patch"
)

// StatusConflict marks a round whose result lost a version race.
const StatusConflict = "conflict"

// presetChange is everything written for one preset update.
type presetChange struct {
	preset   *entity.Preset
	document preset.Document
	round    *entity.TeachingRound
	example  *entity.TeachingExample
}

// commitChange writes the new document, the round record and the optional
// example in one transaction. On a version conflict the round is still
// recorded with StatusConflict and ErrVersionConflict is returned.
func commitChange(ctx context.Context, factory unitofwork.RepositoryFactory, c presetChange) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback() }()

	expected := c.preset.Version
	c.preset.Document = c.document
	if name := c.document.Name(); name != "" {
		c.preset.Name = name
	}

	err := uow.PresetRepository().UpdateDocument(ctx, c.preset, expected)
	if errors.Is(err, contract.ErrVersionConflict) {
		_ = uow.Rollback()
		c.round.Status = StatusConflict
		c.round.Error = err.Error()
		c.round.AfterVersion = expected
		if rerr := factory.NewUnitOfWork(ctx).TeachingRoundRepository().Create(ctx, c.round); rerr != nil {
			return rerr
		}
		return err
	}
	if err != nil {
		return err
	}
	c.round.AfterVersion = c.preset.Version

	if c.example != nil {
		c.example.PresetId = c.preset.Id
		if err := uow.TeachingExampleRepository().Create(ctx, c.example); err != nil {
			return err
		}
	}
	if err := uow.TeachingRoundRepository().Create(ctx, c.round); err != nil {
		return err
	}
	return uow.Commit()
}

// announce puts a preset update on the in-process bus. Failures are logged
// only; the write has already committed.
func announce(ctx context.Context, publisher IPublisherService, log logger.ILogger, p *entity.Preset, round *entity.TeachingRound) {
	if publisher == nil {
		return
	}
	msg := dto.PresetUpdatedMessage{
		PresetId:  p.Id,
		OwnerKey:  p.OwnerKey,
		SourceKey: p.SourceKey,
		Name:      p.Name,
		Version:   p.Version,
		Trigger:   TriggerManual,
		UpdatedAt: time.Now(),
	}
	if round != nil {
		msg.RoundId = round.Id
		msg.Trigger = round.Trigger
		msg.Applied = len(round.Applied)
		msg.Failed = len(round.Failed)
	}
	payload, err := json.Marshal(msg)
	if err == nil {
		err = publisher.Publish(ctx, payload)
	}
	if err != nil {
		log.Warn("PRESET", "Failed to publish preset update", map[string]interface{}{
			"preset_id": p.Id.String(),
			"error":     err.Error(),
		})
	}
}

// metaOf copies the meta section for audit records.
func metaOf(doc preset.Document) map[string]interface{} {
	meta, ok := doc[preset.SectionMeta].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func outcomes(list []preset.OpOutcome) []preset.OpOutcome {
	if list == nil {
		return []preset.OpOutcome{}
	}
	return list
}
