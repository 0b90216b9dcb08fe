package memory

import (
	"context"
	"testing"
	"time"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T, pairs ...[2]string) *KnowledgeRepository {
	t.Helper()
	repo := NewKnowledgeRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range pairs {
		require.NoError(t, repo.Create(context.Background(), &entity.KnowledgeEntry{
			Question:  p[0],
			Answer:    p[1],
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return repo
}

func TestKnowledgeRepositoryFindExact(t *testing.T) {
	repo := seeded(t, [2]string{"hello", "Hi!"}, [2]string{"opening hours", "9 to 5"})
	ctx := context.Background()

	tests := []struct {
		name     string
		question string
		want     string
	}{
		{"same case", "hello", "Hi!"},
		{"upper case", "HELLO", "Hi!"},
		{"surrounding whitespace", "  Opening Hours ", "9 to 5"},
		{"no match", "goodbye", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindExact(ctx, tt.question)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Answer)
		})
	}
}

func TestKnowledgeRepositoryFindBySubstringMostRecentFirst(t *testing.T) {
	repo := seeded(t,
		[2]string{"password reset instructions", "Use the portal."},
		[2]string{"billing", "Invoices are monthly."},
		[2]string{"Password policy", "Twelve characters."},
	)
	ctx := context.Background()

	got, err := repo.FindBySubstring(ctx, "PASSWORD", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Password policy", got[0].Question)
	assert.Equal(t, "password reset instructions", got[1].Question)

	got, err = repo.FindBySubstring(ctx, "monthly", 1, entity.KnowledgeFieldAnswer, entity.KnowledgeFieldContent)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "billing", got[0].Question)

	got, err = repo.FindBySubstring(ctx, "monthly", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKnowledgeRepositoryListRecent(t *testing.T) {
	repo := seeded(t, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})

	got, err := repo.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Question)
	assert.Equal(t, "b", got[1].Question)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestKnowledgeRepositoryUpdate(t *testing.T) {
	repo := seeded(t, [2]string{"hello", "Hi!"})
	ctx := context.Background()

	entry, err := repo.FindExact(ctx, "hello")
	require.NoError(t, err)
	entry.Answer = "Hello there!"
	require.NoError(t, repo.Update(ctx, entry))
	assert.NotNil(t, entry.UpdatedAt)

	got, err := repo.FindByID(ctx, entry.Id)
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", got.Answer)

	err = repo.Update(ctx, &entity.KnowledgeEntry{Id: uuid.New(), Question: "x"})
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestKnowledgeRepositoryReturnsCopies(t *testing.T) {
	repo := seeded(t, [2]string{"hello", "Hi!"})
	ctx := context.Background()

	got, err := repo.FindExact(ctx, "hello")
	require.NoError(t, err)
	got.Answer = "mutated"

	again, err := repo.FindExact(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", again.Answer)
}

func TestKnowledgeRepositoryHonoursCancelledContext(t *testing.T) {
	repo := seeded(t, [2]string{"hello", "Hi!"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListRecent(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
