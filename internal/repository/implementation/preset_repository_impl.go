package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/model"
	"preset-teaching-be/internal/repository/contract"
	"preset-teaching-be/internal/repository/specification"
	"preset-teaching-be/pkg/preset"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type presetRepository struct {
	db *gorm.DB
}

func NewPresetRepository(db *gorm.DB) contract.PresetRepository {
	return &presetRepository{db: db}
}

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *presetRepository) Create(ctx context.Context, p *entity.Preset) error {
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	m, err := presetEntityToModel(p)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return contract.ErrDuplicateSource
		}
		return err
	}
	p.CreatedAt = m.CreatedAt
	p.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *presetRepository) UpdateDocument(ctx context.Context, p *entity.Preset, expectedVersion int) error {
	raw, err := p.Document.Bytes()
	if err != nil {
		return fmt.Errorf("encode preset document: %w", err)
	}
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.Preset{}).
		Where("id = ? AND version = ?", p.Id, expectedVersion).
		Updates(map[string]interface{}{
			"document":   datatypes.JSON(raw),
			"name":       p.Name,
			"version":    expectedVersion + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrVersionConflict
	}
	p.Version = expectedVersion + 1
	p.UpdatedAt = now
	return nil
}

func (r *presetRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Preset, error) {
	var m model.Preset
	if err := applySpecifications(r.db.WithContext(ctx), specs...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return presetModelToEntity(&m)
}

func (r *presetRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Preset, error) {
	var models []model.Preset
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.Preset, 0, len(models))
	for i := range models {
		e, err := presetModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *presetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Preset{}, "id = ?", id).Error
}

func presetEntityToModel(p *entity.Preset) (*model.Preset, error) {
	doc := p.Document
	if doc == nil {
		doc = preset.Document{}
	}
	raw, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode preset document: %w", err)
	}
	return &model.Preset{
		Id:        p.Id,
		OwnerKey:  p.OwnerKey,
		SourceKey: p.SourceKey,
		Name:      p.Name,
		Document:  datatypes.JSON(raw),
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func presetModelToEntity(m *model.Preset) (*entity.Preset, error) {
	doc, err := preset.ParseDocument(m.Document)
	if err != nil {
		return nil, err
	}
	return &entity.Preset{
		Id:        m.Id,
		OwnerKey:  m.OwnerKey,
		SourceKey: m.SourceKey,
		Name:      m.Name,
		Document:  doc,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
