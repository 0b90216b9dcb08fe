package service

import (
	"context"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/pkg/events"

	"github.com/google/uuid"
)

const maxListLimit = 200

type IKnowledgeService interface {
	// Create adds a pair. A question that already exists (case-insensitive) gets its answer replaced instead.
	Create(ctx context.Context, addedBy string, req *dto.CreateKnowledgeRequest) (*dto.KnowledgeResponse, error)
	Update(ctx context.Context, req *dto.UpdateKnowledgeRequest) (*dto.KnowledgeResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.KnowledgeResponse, error)
	ListRecent(ctx context.Context, limit int) (*dto.ListKnowledgeResponse, error)
}

type knowledgeService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher EventPublisher
	logger         logger.ILogger
}

func NewKnowledgeService(uowFactory unitofwork.RepositoryFactory, eventPublisher EventPublisher, log logger.ILogger) IKnowledgeService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &knowledgeService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (s *knowledgeService) Create(ctx context.Context, addedBy string, req *dto.CreateKnowledgeRequest) (*dto.KnowledgeResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			uow.Rollback()
			panic(r)
		}
	}()

	repo := uow.KnowledgeRepository()
	existing, err := repo.FindExact(ctx, req.Question)
	if err != nil {
		uow.Rollback()
		return nil, err
	}

	var entry *entity.KnowledgeEntry
	created := existing == nil
	if created {
		entry = &entity.KnowledgeEntry{
			Id:        uuid.New(),
			Question:  req.Question,
			Answer:    req.Answer,
			Content:   req.Content,
			CreatedAt: time.Now(),
		}
		err = repo.Create(ctx, entry)
	} else {
		entry = existing
		entry.Answer = req.Answer
		if req.Content != "" {
			entry.Content = req.Content
		}
		err = repo.Update(ctx, entry)
	}
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("KNOWLEDGE", "Knowledge entry added", map[string]interface{}{
			"entry_id": entry.Id.String(),
			"added_by": addedBy,
		})
		s.publish(ctx, events.KnowledgeAdded(entry.Id.String(), entry.Question, addedBy))
	} else {
		s.logger.Info("KNOWLEDGE", "Existing question re-taught, answer replaced", map[string]interface{}{
			"entry_id": entry.Id.String(),
			"added_by": addedBy,
		})
		s.publish(ctx, events.KnowledgeUpdated(entry.Id.String(), entry.Question))
	}
	return toKnowledgeResponse(entry), nil
}

func (s *knowledgeService) Update(ctx context.Context, req *dto.UpdateKnowledgeRequest) (*dto.KnowledgeResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	entry := &entity.KnowledgeEntry{
		Id:       req.Id,
		Question: req.Question,
		Answer:   req.Answer,
		Content:  req.Content,
	}
	if err := uow.KnowledgeRepository().Update(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.KnowledgeUpdated(entry.Id.String(), entry.Question))
	return toKnowledgeResponse(entry), nil
}

func (s *knowledgeService) Show(ctx context.Context, id uuid.UUID) (*dto.KnowledgeResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	entry, err := uow.KnowledgeRepository().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, contract.ErrNotFound
	}
	return toKnowledgeResponse(entry), nil
}

func (s *knowledgeService) ListRecent(ctx context.Context, limit int) (*dto.ListKnowledgeResponse, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.KnowledgeRepository()
	entries, err := repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.KnowledgeResponse, len(entries))
	for i, e := range entries {
		items[i] = toKnowledgeResponse(e)
	}
	return &dto.ListKnowledgeResponse{Items: items, Total: total}, nil
}

// publish is best effort. A failed event never fails the write that caused it.
func (s *knowledgeService) publish(ctx context.Context, evt events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("KNOWLEDGE", "Failed to publish event", map[string]interface{}{
			"event": evt.EventType(),
			"error": err,
		})
	}
}

func toKnowledgeResponse(e *entity.KnowledgeEntry) *dto.KnowledgeResponse {
	return &dto.KnowledgeResponse{
		Id:        e.Id,
		Question:  e.Question,
		Answer:    e.Answer,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
