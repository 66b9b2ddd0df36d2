package unitofwork

import (
	"context"
	"errors"

	"preset-teaching-be/internal/repository/contract"
	"preset-teaching-be/internal/repository/implementation"

	"gorm.io/gorm"
)

var (
	errTxActive   = errors.New("transaction already started")
	errTxInactive = errors.New("no active transaction")
)

type unitOfWork struct {
	db *gorm.DB
	tx *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return errTxActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return errTxInactive
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return errTxInactive
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *unitOfWork) PresetRepository() contract.PresetRepository {
	return implementation.NewPresetRepository(u.conn())
}

func (u *unitOfWork) TeachingExampleRepository() contract.TeachingExampleRepository {
	return implementation.NewTeachingExampleRepository(u.conn())
}

func (u *unitOfWork) TeachingRoundRepository() contract.TeachingRoundRepository {
	return implementation.NewTeachingRoundRepository(u.conn())
}
