package unitofwork

import (
	"context"

	"kb-assistant-be/internal/repository/memory"

	"gorm.io/gorm"
)

type RepositoryFactoryImpl struct {
	db *gorm.DB
}

func NewRepositoryFactory(db *gorm.DB) RepositoryFactory {
	return &RepositoryFactoryImpl{
		db: db,
	}
}

// UoW is short lived, one per request or command.
func (f *RepositoryFactoryImpl) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return NewUnitOfWork(f.db)
}

// MemoryRepositoryFactory hands out units of work over one shared in-memory store.
type MemoryRepositoryFactory struct {
	repo *memory.KnowledgeRepository
}

func NewMemoryRepositoryFactory(repo *memory.KnowledgeRepository) RepositoryFactory {
	return &MemoryRepositoryFactory{repo: repo}
}

func (f *MemoryRepositoryFactory) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return &memoryUnitOfWork{repo: f.repo}
}
