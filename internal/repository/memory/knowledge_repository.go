package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
)

// KnowledgeRepository keeps entries in insertion order. It backs DB-less development and tests.
type KnowledgeRepository struct {
	mu      sync.RWMutex
	entries []*entity.KnowledgeEntry
	now     func() time.Time
}

func NewKnowledgeRepository() *KnowledgeRepository {
	return &KnowledgeRepository{now: time.Now}
}

var _ contract.KnowledgeRepository = (*KnowledgeRepository)(nil)

func (r *KnowledgeRepository) Create(ctx context.Context, entry *entity.KnowledgeEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Id == uuid.Nil {
		entry.Id = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	c := *entry
	r.entries = append(r.entries, &c)
	return nil
}

func (r *KnowledgeRepository) Update(ctx context.Context, entry *entity.KnowledgeEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.Id == entry.Id {
			now := r.now()
			entry.CreatedAt = e.CreatedAt
			entry.UpdatedAt = &now
			c := *entry
			r.entries[i] = &c
			return nil
		}
	}
	return contract.ErrNotFound
}

func (r *KnowledgeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.KnowledgeEntry, error) {
	return r.first(ctx, func(e *entity.KnowledgeEntry) bool { return e.Id == id })
}

func (r *KnowledgeRepository) FindExact(ctx context.Context, question string) (*entity.KnowledgeEntry, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return nil, nil
	}
	return r.first(ctx, func(e *entity.KnowledgeEntry) bool {
		return strings.ToLower(strings.TrimSpace(e.Question)) == q
	})
}

func (r *KnowledgeRepository) FindBySubstring(ctx context.Context, pattern string, limit int, fields ...entity.KnowledgeField) ([]*entity.KnowledgeEntry, error) {
	p := strings.ToLower(pattern)
	if strings.TrimSpace(p) == "" {
		return nil, nil
	}
	if len(fields) == 0 {
		fields = []entity.KnowledgeField{entity.KnowledgeFieldQuestion}
	}
	return r.filter(ctx, limit, func(e *entity.KnowledgeEntry) bool {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(e.Value(f)), p) {
				return true
			}
		}
		return false
	})
}

func (r *KnowledgeRepository) ListRecent(ctx context.Context, limit int) ([]*entity.KnowledgeEntry, error) {
	return r.filter(ctx, limit, func(*entity.KnowledgeEntry) bool { return true })
}

func (r *KnowledgeRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}

func (r *KnowledgeRepository) first(ctx context.Context, match func(*entity.KnowledgeEntry) bool) (*entity.KnowledgeEntry, error) {
	found, err := r.filter(ctx, 1, match)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// filter walks newest to oldest and returns copies.
func (r *KnowledgeRepository) filter(ctx context.Context, limit int, match func(*entity.KnowledgeEntry) bool) ([]*entity.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.KnowledgeEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !match(e) {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
