package unitofwork

import (
	"context"

	"kb-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	KnowledgeRepository() contract.KnowledgeRepository
}
