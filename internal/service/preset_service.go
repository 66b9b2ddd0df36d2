package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/repository/memory"
	"preset-teaching-be/internal/repository/specification"
	"preset-teaching-be/internal/repository/unitofwork"
	"preset-teaching-be/pkg/preset"
	"preset-teaching-be/pkg/teaching"

	"github.com/google/uuid"
)

type IPresetService interface {
	List(ctx context.Context, ownerKey string) ([]*dto.PresetResponse, error)
	Show(ctx context.Context, ownerKey string, id uuid.UUID) (*dto.PresetResponse, error)
	Create(ctx context.Context, ownerKey string, req *dto.CreatePresetRequest) (*dto.PresetResponse, error)
	Replace(ctx context.Context, ownerKey string, id uuid.UUID, req *dto.ReplacePresetRequest) (*dto.PresetResponse, error)
	Delete(ctx context.Context, ownerKey string, id uuid.UUID) error
	Nodes(ctx context.Context, ownerKey string, id uuid.UUID) (*dto.PresetNodesResponse, error)
	Patch(ctx context.Context, ownerKey string, id uuid.UUID, req *dto.PatchPresetRequest) (*dto.PatchPresetResponse, error)
	Rounds(ctx context.Context, ownerKey string, id uuid.UUID, req *dto.ListRoundsRequest) ([]*dto.RoundResponse, error)
}

type presetService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.PresetCache
	pipeline   *teaching.Pipeline
	queue      *teaching.Queue
	publisher  IPublisherService
	logger     logger.ILogger
}

func NewPresetService(
	uowFactory unitofwork.RepositoryFactory,
	cache *memory.PresetCache,
	pipeline *teaching.Pipeline,
	queue *teaching.Queue,
	publisher IPublisherService,
	log logger.ILogger,
) IPresetService {
	return &presetService{
		uowFactory: uowFactory,
		cache:      cache,
		pipeline:   pipeline,
		queue:      queue,
		publisher:  publisher,
		logger:     log,
	}
}

func toPresetResponse(p *entity.Preset, withDocument bool) *dto.PresetResponse {
	res := &dto.PresetResponse{
		Id:        p.Id,
		OwnerKey:  p.OwnerKey,
		SourceKey: p.SourceKey,
		Name:      p.Name,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if withDocument {
		res.Document = p.Document
	}
	return res
}

// load reads through the cache. Presets of other owners look missing.
func (s *presetService) load(ctx context.Context, ownerKey string, id uuid.UUID) (*entity.Preset, error) {
	if p, ok := s.cache.Get(id); ok {
		if p.OwnerKey != ownerKey {
			return nil, ErrPresetNotFound
		}
		return p, nil
	}
	p, err := s.fresh(ctx, ownerKey, id)
	if err != nil {
		return nil, err
	}
	s.cache.Save(p)
	return p, nil
}

// fresh skips the cache. Writers always start from it.
func (s *presetService) fresh(ctx context.Context, ownerKey string, id uuid.UUID) (*entity.Preset, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	p, err := uow.PresetRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByOwner{OwnerKey: ownerKey},
	)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPresetNotFound
	}
	return p, nil
}

func (s *presetService) List(ctx context.Context, ownerKey string) ([]*dto.PresetResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	presets, err := uow.PresetRepository().FindAll(ctx,
		specification.ByOwner{OwnerKey: ownerKey},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.PresetResponse, 0, len(presets))
	for _, p := range presets {
		res = append(res, toPresetResponse(p, false))
	}
	return res, nil
}

func (s *presetService) Show(ctx context.Context, ownerKey string, id uuid.UUID) (*dto.PresetResponse, error) {
	p, err := s.load(ctx, ownerKey, id)
	if err != nil {
		return nil, err
	}
	return toPresetResponse(p, true), nil
}

func (s *presetService) Create(ctx context.Context, ownerKey string, req *dto.CreatePresetRequest) (*dto.PresetResponse, error) {
	if req.Document == nil {
		return nil, ErrInvalidDocument
	}
	doc := preset.Document(req.Document).Clone()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = doc.Name()
	}
	p := &entity.Preset{
		OwnerKey:  ownerKey,
		SourceKey: strings.TrimSpace(req.SourceKey),
		Name:      name,
		Document:  doc,
		Version:   1,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.PresetRepository().Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("PRESET", "Preset created", map[string]interface{}{"preset_id": p.Id.String(), "source_key": p.SourceKey})
	return toPresetResponse(p, true), nil
}

// Replace overwrites the document through the round queue so it never
// interleaves with a teaching round.
func (s *presetService) Replace(ctx context.Context, ownerKey string, id uuid.UUID, req *dto.ReplacePresetRequest) (*dto.PresetResponse, error) {
	if req.Document == nil {
		return nil, ErrInvalidDocument
	}
	var out *entity.Preset
	err := s.serialized(ctx, "replace "+id.String(), func(ctx context.Context) error {
		p, err := s.fresh(ctx, ownerKey, id)
		if err != nil {
			return err
		}
		if p.Version != req.Version {
			return ErrVersionConflict
		}
		p.Document = preset.Document(req.Document).Clone()
		if name := strings.TrimSpace(req.Name); name != "" {
			p.Name = name
		} else if name := p.Document.Name(); name != "" {
			p.Name = name
		}
		uow := s.uowFactory.NewUnitOfWork(ctx)
		if err := uow.PresetRepository().UpdateDocument(ctx, p, req.Version); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(id)
	announce(ctx, s.publisher, s.logger, out, nil)
	return toPresetResponse(out, true), nil
}

func (s *presetService) Delete(ctx context.Context, ownerKey string, id uuid.UUID) error {
	p, err := s.fresh(ctx, ownerKey, id)
	if err != nil {
		return err
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.PresetRepository().Delete(ctx, p.Id); err != nil {
		return err
	}
	s.cache.Delete(id)
	return nil
}

func (s *presetService) Nodes(ctx context.Context, ownerKey string, id uuid.UUID) (*dto.PresetNodesResponse, error) {
	p, err := s.load(ctx, ownerKey, id)
	if err != nil {
		return nil, err
	}
	ix := s.pipeline.Index(p.Document)
	return &dto.PresetNodesResponse{
		PresetId: p.Id,
		Version:  p.Version,
		Nodes:    ix.Nodes,
		InputXml: teaching.BuildRequestXML(ix, ""),
	}, nil
}

func toOperations(in []dto.PatchOperation) []preset.Operation {
	ops := make([]preset.Operation, 0, len(in))
	for _, op := range in {
		ops = append(ops, preset.Operation{
			Op:     preset.OpType(op.Op),
			Path:   op.Path,
			Value:  op.Value,
			Reason: op.Reason,
		})
	}
	return ops
}

// Patch applies operations with the same applier teaching rounds use. A dry
// run reports outcomes without writing.
func (s *presetService) Patch(ctx context.Context, ownerKey string, id uuid.UUID, req *dto.PatchPresetRequest) (*dto.PatchPresetResponse, error) {
	ops := toOperations(req.Ops)

	if req.DryRun {
		p, err := s.load(ctx, ownerKey, id)
		if err != nil {
			return nil, err
		}
		result := preset.ApplyAll(p.Document, ops)
		return &dto.PatchPresetResponse{
			Updated: false,
			Version: p.Version,
			Applied: outcomes(result.Applied),
			Failed:  outcomes(result.Failed),
		}, nil
	}

	var (
		res   *dto.PatchPresetResponse
		round *entity.TeachingRound
		saved *entity.Preset
	)
	err := s.serialized(ctx, "patch "+id.String(), func(ctx context.Context) error {
		p, err := s.fresh(ctx, ownerKey, id)
		if err != nil {
			return err
		}
		result := preset.ApplyAll(p.Document, ops)
		round = &entity.TeachingRound{
			PresetId:      p.Id,
			Trigger:       TriggerPatch,
			Status:        teaching.StatusNoApplied,
			Applied:       outcomes(result.Applied),
			Failed:        outcomes(result.Failed),
			BeforeMeta:    metaOf(p.Document),
			BeforeVersion: p.Version,
			AfterVersion:  p.Version,
		}
		res = &dto.PatchPresetResponse{Version: p.Version, Applied: round.Applied, Failed: round.Failed}

		if !result.Changed() {
			uow := s.uowFactory.NewUnitOfWork(ctx)
			return uow.TeachingRoundRepository().Create(ctx, round)
		}

		round.Status = teaching.StatusUpdated
		round.AfterMeta = metaOf(result.Document)
		if err := commitChange(ctx, s.uowFactory, presetChange{preset: p, document: result.Document, round: round}); err != nil {
			return err
		}
		res.Updated = true
		res.Version = p.Version
		saved = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if saved != nil {
		s.cache.Delete(id)
		announce(ctx, s.publisher, s.logger, saved, round)
	}
	return res, nil
}

// serialized runs job on the round queue and waits for it.
func (s *presetService) serialized(ctx context.Context, name string, job teaching.Job) error {
	done := s.queue.Enqueue(name, job)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

func (s *presetService) Rounds(ctx context.Context, ownerKey string, id uuid.UUID, req *dto.ListRoundsRequest) ([]*dto.RoundResponse, error) {
	if _, err := s.load(ctx, ownerKey, id); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rounds, err := uow.TeachingRoundRepository().FindAll(ctx,
		specification.ByPreset{PresetId: id},
		specification.ByRoundStatus{Status: req.Status},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: req.Offset},
	)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.RoundResponse, 0, len(rounds))
	for _, r := range rounds {
		item := &dto.RoundResponse{
			Id:            r.Id,
			BatchKey:      r.BatchKey,
			Trigger:       r.Trigger,
			Status:        r.Status,
			NodeCount:     r.NodeCount,
			Attempts:      r.Attempts,
			Applied:       outcomes(r.Applied),
			Failed:        outcomes(r.Failed),
			BeforeMeta:    r.BeforeMeta,
			AfterMeta:     r.AfterMeta,
			BeforeVersion: r.BeforeVersion,
			AfterVersion:  r.AfterVersion,
			Error:         r.Error,
			DurationMs:    r.DurationMs,
			CreatedAt:     r.CreatedAt,
		}
		if len(r.Unknown) > 0 {
			item.Unknown = r.Unknown
		}
		res = append(res, item)
	}
	return res, nil
}

// IsNotFound reports errors that should surface as 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPresetNotFound)
}
