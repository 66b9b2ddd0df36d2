package unitofwork

import (
	"context"

	"preset-teaching-be/internal/repository/contract"
)

// UnitOfWork groups repository writes into one database transaction.
// Repositories fetched before Begin use the plain connection.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	PresetRepository() contract.PresetRepository
	TeachingExampleRepository() contract.TeachingExampleRepository
	TeachingRoundRepository() contract.TeachingRoundRepository
}
