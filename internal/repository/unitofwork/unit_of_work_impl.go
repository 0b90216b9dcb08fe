package unitofwork

import (
	"context"
	"fmt"

	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/internal/repository/implementation"
	"kb-assistant-be/internal/repository/memory"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB // active transaction, nil outside Begin/Commit
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) KnowledgeRepository() contract.KnowledgeRepository {
	return implementation.NewKnowledgeRepository(u.getDB())
}

// memoryUnitOfWork has no transaction. Each repository call is atomic on its own and Rollback does not undo writes.
type memoryUnitOfWork struct {
	repo  *memory.KnowledgeRepository
	began bool
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	if u.began {
		return fmt.Errorf("transaction already started")
	}
	u.began = true
	return ctx.Err()
}

func (u *memoryUnitOfWork) Commit() error {
	if !u.began {
		return fmt.Errorf("no transaction to commit")
	}
	u.began = false
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	if !u.began {
		return fmt.Errorf("no transaction to rollback")
	}
	u.began = false
	return nil
}

func (u *memoryUnitOfWork) KnowledgeRepository() contract.KnowledgeRepository {
	return u.repo
}
