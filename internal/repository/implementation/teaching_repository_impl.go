package implementation

import (
	"context"
	"encoding/json"

	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/model"
	"preset-teaching-be/internal/repository/contract"
	"preset-teaching-be/internal/repository/scope"
	"preset-teaching-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type teachingExampleRepository struct {
	db *gorm.DB
}

func NewTeachingExampleRepository(db *gorm.DB) contract.TeachingExampleRepository {
	return &teachingExampleRepository{db: db}
}

func (r *teachingExampleRepository) Create(ctx context.Context, ex *entity.TeachingExample) error {
	if ex.Id == uuid.Nil {
		ex.Id = uuid.New()
	}
	m := &model.TeachingExample{
		Id:       ex.Id,
		PresetId: ex.PresetId,
		InputXml: ex.InputXml,
		PlanXml:  ex.PlanXml,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	ex.CreatedAt = m.CreatedAt
	return nil
}

func (r *teachingExampleRepository) FindRecent(ctx context.Context, presetId uuid.UUID, limit int) ([]*entity.TeachingExample, error) {
	if limit <= 0 {
		return []*entity.TeachingExample{}, nil
	}
	var models []model.TeachingExample
	err := r.db.WithContext(ctx).
		Scopes(scope.ForPreset(presetId), scope.OrderByCreatedDesc).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]*entity.TeachingExample, len(models))
	for i := range models {
		m := models[len(models)-1-i]
		out[i] = &entity.TeachingExample{
			Id:        m.Id,
			PresetId:  m.PresetId,
			InputXml:  m.InputXml,
			PlanXml:   m.PlanXml,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, nil
}

type teachingRoundRepository struct {
	db *gorm.DB
}

func NewTeachingRoundRepository(db *gorm.DB) contract.TeachingRoundRepository {
	return &teachingRoundRepository{db: db}
}

func (r *teachingRoundRepository) Create(ctx context.Context, round *entity.TeachingRound) error {
	if round.Id == uuid.Nil {
		round.Id = uuid.New()
	}
	m := roundEntityToModel(round)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	round.CreatedAt = m.CreatedAt
	return nil
}

func (r *teachingRoundRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TeachingRound, error) {
	var models []model.TeachingRound
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.TeachingRound, len(models))
	for i := range models {
		out[i] = roundModelToEntity(&models[i])
	}
	return out, nil
}

func toJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}

func fromJSON(raw datatypes.JSON, out interface{}) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func roundEntityToModel(e *entity.TeachingRound) *model.TeachingRound {
	return &model.TeachingRound{
		Id:            e.Id,
		PresetId:      e.PresetId,
		BatchKey:      e.BatchKey,
		Trigger:       e.Trigger,
		Status:        e.Status,
		NodeCount:     e.NodeCount,
		Attempts:      e.Attempts,
		Applied:       toJSON(e.Applied),
		Failed:        toJSON(e.Failed),
		Unknown:       toJSON(e.Unknown),
		BeforeMeta:    toJSON(e.BeforeMeta),
		AfterMeta:     toJSON(e.AfterMeta),
		BeforeVersion: e.BeforeVersion,
		AfterVersion:  e.AfterVersion,
		Conversation:  e.Conversation,
		Error:         e.Error,
		RawReply:      e.RawReply,
		DurationMs:    e.DurationMs,
		CreatedAt:     e.CreatedAt,
	}
}

func roundModelToEntity(m *model.TeachingRound) *entity.TeachingRound {
	e := &entity.TeachingRound{
		Id:            m.Id,
		PresetId:      m.PresetId,
		BatchKey:      m.BatchKey,
		Trigger:       m.Trigger,
		Status:        m.Status,
		NodeCount:     m.NodeCount,
		Attempts:      m.Attempts,
		BeforeVersion: m.BeforeVersion,
		AfterVersion:  m.AfterVersion,
		Conversation:  m.Conversation,
		Error:         m.Error,
		RawReply:      m.RawReply,
		DurationMs:    m.DurationMs,
		CreatedAt:     m.CreatedAt,
	}
	fromJSON(m.Applied, &e.Applied)
	fromJSON(m.Failed, &e.Failed)
	fromJSON(m.Unknown, &e.Unknown)
	fromJSON(m.BeforeMeta, &e.BeforeMeta)
	fromJSON(m.AfterMeta, &e.AfterMeta)
	return e
}
