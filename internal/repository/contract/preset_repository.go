package contract

import (
	"context"
	"errors"

	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/repository/specification"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict is returned when a preset changed since it was read.
	ErrVersionConflict = errors.New("preset version conflict")
	ErrDuplicateSource = errors.New("a preset for this source already exists")
)

type PresetRepository interface {
	Create(ctx context.Context, p *entity.Preset) error
	// UpdateDocument writes doc when the stored version still equals
	// expectedVersion and bumps the version by one.
	UpdateDocument(ctx context.Context, p *entity.Preset, expectedVersion int) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Preset, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Preset, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TeachingExampleRepository interface {
	Create(ctx context.Context, ex *entity.TeachingExample) error
	// FindRecent returns the newest examples of a preset, oldest first.
	FindRecent(ctx context.Context, presetId uuid.UUID, limit int) ([]*entity.TeachingExample, error)
}

type TeachingRoundRepository interface {
	Create(ctx context.Context, round *entity.TeachingRound) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TeachingRound, error)
}
