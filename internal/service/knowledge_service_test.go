package service

import (
	"context"
	"strings"
	"testing"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/internal/repository/memory"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKnowledgeService(t *testing.T) (IKnowledgeService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	repo := memory.NewKnowledgeRepository()
	return NewKnowledgeService(unitofwork.NewMemoryRepositoryFactory(repo), pub, logger.NewNopLogger()), pub
}

func TestKnowledgeService_CreateAndReteach(t *testing.T) {
	ctx := context.Background()
	svc, pub := newKnowledgeService(t)

	first, err := svc.Create(ctx, "u1", &dto.CreateKnowledgeRequest{Question: "Where do I park?", Answer: "Level -1."})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.Id)

	second, err := svc.Create(ctx, "u2", &dto.CreateKnowledgeRequest{Question: "where do i park?", Answer: "Level -2."})
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id, "re-teaching keeps the entry")
	assert.Equal(t, "Level -2.", second.Answer)

	list, err := svc.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	require.Equal(t, 2, pub.count())
	assert.Equal(t, events.TypeKnowledgeAdded, pub.events[0].EventType())
	assert.Equal(t, events.TypeKnowledgeUpdated, pub.events[1].EventType())
}

func TestKnowledgeService_Validation(t *testing.T) {
	svc, pub := newKnowledgeService(t)

	tests := []struct {
		name  string
		req   *dto.CreateKnowledgeRequest
		field string
	}{
		{name: "missing question", req: &dto.CreateKnowledgeRequest{Answer: "a"}, field: "question"},
		{name: "missing answer", req: &dto.CreateKnowledgeRequest{Question: "q"}, field: "answer"},
		{name: "question too long", req: &dto.CreateKnowledgeRequest{Question: strings.Repeat("q", 1001), Answer: "a"}, field: "question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "u1", tt.req)
			var ve *dto.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
	assert.Zero(t, pub.count())
}

func TestKnowledgeService_ShowAndUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newKnowledgeService(t)

	created, err := svc.Create(ctx, "u1", &dto.CreateKnowledgeRequest{Question: "Wifi password?", Answer: "guest123"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, &dto.UpdateKnowledgeRequest{Id: created.Id, Question: "Wifi password?", Answer: "guest456"})
	require.NoError(t, err)
	assert.NotNil(t, updated.UpdatedAt)

	shown, err := svc.Show(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "guest456", shown.Answer)

	_, err = svc.Show(ctx, uuid.New())
	assert.ErrorIs(t, err, contract.ErrNotFound)

	_, err = svc.Update(ctx, &dto.UpdateKnowledgeRequest{Id: uuid.New(), Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, contract.ErrNotFound)
}
