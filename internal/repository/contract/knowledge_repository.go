package contract

import (
	"context"

	"kb-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// KnowledgeRepository is the knowledge store. Text matching is case-insensitive and every list is ordered most
// recent first. A missing entry is (nil, nil).
type KnowledgeRepository interface {
	Create(ctx context.Context, entry *entity.KnowledgeEntry) error
	Update(ctx context.Context, entry *entity.KnowledgeEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.KnowledgeEntry, error)
	FindExact(ctx context.Context, question string) (*entity.KnowledgeEntry, error)
	// FindBySubstring matches entries where any of fields contains pattern. No fields means question.
	FindBySubstring(ctx context.Context, pattern string, limit int, fields ...entity.KnowledgeField) ([]*entity.KnowledgeEntry, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.KnowledgeEntry, error)
	Count(ctx context.Context) (int64, error)
}
