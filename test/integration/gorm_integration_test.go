package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/model"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/implementation"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/pkg/database"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/match"
	"kb-assistant-be/pkg/resolver"
	"kb-assistant-be/pkg/store"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, 4, false)
	require.NoError(t, err, "Failed to connect to DB")
	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error)
	require.NoError(t, db.AutoMigrate(&model.KnowledgeEntry{}))
	return db
}

func TestKnowledgeRepository_Postgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := implementation.NewKnowledgeRepository(db)

	// Unique marker keeps runs against a shared database apart
	marker := uuid.NewString()[:8]
	entry := &entity.KnowledgeEntry{
		Id:        uuid.New(),
		Question:  "Where is the " + marker + " office?",
		Answer:    "Second floor, next to the 100% kitchen.",
		Content:   "Visitors sign in at reception.",
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, entry))
	t.Cleanup(func() { db.Delete(&model.KnowledgeEntry{}, "id = ?", entry.Id) })

	t.Run("exact match ignores case", func(t *testing.T) {
		got, err := repo.FindExact(ctx, "WHERE IS THE "+marker+" OFFICE?")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, entry.Id, got.Id)
	})

	t.Run("missing exact match is nil", func(t *testing.T) {
		got, err := repo.FindExact(ctx, "no such question "+marker)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("substring search escapes wildcards", func(t *testing.T) {
		got, err := repo.FindBySubstring(ctx, "100%", 5, entity.KnowledgeFieldAnswer)
		require.NoError(t, err)
		require.NotEmpty(t, got)

		got, err = repo.FindBySubstring(ctx, marker+"_", 5, entity.KnowledgeFieldQuestion)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("update keeps created_at", func(t *testing.T) {
		entry.Answer = "Third floor."
		require.NoError(t, repo.Update(ctx, entry))

		got, err := repo.FindByID(ctx, entry.Id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Third floor.", got.Answer)
		assert.NotNil(t, got.UpdatedAt)
	})
}

func TestResolver_Postgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	marker := uuid.NewString()[:8]
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	entry := &entity.KnowledgeEntry{
		Id:        uuid.New(),
		Question:  "How do I book room " + marker + "?",
		Answer:    "Use the calendar.",
		CreatedAt: time.Now(),
	}
	require.NoError(t, uow.KnowledgeRepository().Create(ctx, entry))
	require.NoError(t, uow.Commit())
	t.Cleanup(func() { db.Delete(&model.KnowledgeEntry{}, "id = ?", entry.Id) })

	log := logger.NewNopLogger()
	ops := governor.New(governor.Config{Name: "operations", Capacity: 4}, log)
	defer ops.Shutdown(ctx)

	r := resolver.New(implementation.NewKnowledgeRepository(db), nil, ops, resolver.DefaultTables(), match.NewDefaultScorer(), resolver.Config{
		LookupTimeout: 5 * time.Second,
	}, log)

	res := r.Resolve(ctx, "how do i book room "+marker+"?", store.ModeKB)
	assert.Equal(t, resolver.SourceExact, res.Source)
	assert.Equal(t, "Use the calendar.", res.Text)
}
