package implementation

import (
	"context"
	"errors"
	"strings"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/mapper"
	"kb-assistant-be/internal/model"
	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type KnowledgeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgeRepository(db *gorm.DB) contract.KnowledgeRepository {
	return &KnowledgeRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgeRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *KnowledgeRepositoryImpl) Create(ctx context.Context, entry *entity.KnowledgeEntry) error {
	m := r.mapper.ToModel(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*entry = *r.mapper.ToEntity(m)
	return nil
}

func (r *KnowledgeRepositoryImpl) Update(ctx context.Context, entry *entity.KnowledgeEntry) error {
	res := r.db.WithContext(ctx).Model(&model.KnowledgeEntry{}).Where("id = ?", entry.Id).Updates(map[string]interface{}{
		"question": entry.Question,
		"answer":   entry.Answer,
		"content":  entry.Content,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrNotFound
	}

	updated, err := r.FindByID(ctx, entry.Id)
	if err != nil {
		return err
	}
	if updated != nil {
		*entry = *updated
	}
	return nil
}

func (r *KnowledgeRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.KnowledgeEntry, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *KnowledgeRepositoryImpl) FindExact(ctx context.Context, question string) (*entity.KnowledgeEntry, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil
	}
	return r.findOne(ctx, specification.QuestionEquals{Question: question}, specification.MostRecentFirst{})
}

func (r *KnowledgeRepositoryImpl) FindBySubstring(ctx context.Context, pattern string, limit int, fields ...entity.KnowledgeField) ([]*entity.KnowledgeEntry, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	specs := []specification.Specification{
		specification.ContainsAny{Pattern: pattern, Fields: fields},
		specification.MostRecentFirst{},
	}
	if limit > 0 {
		specs = append(specs, specification.Pagination{Limit: limit})
	}
	return r.findAll(ctx, specs...)
}

func (r *KnowledgeRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*entity.KnowledgeEntry, error) {
	specs := []specification.Specification{specification.MostRecentFirst{}}
	if limit > 0 {
		specs = append(specs, specification.Pagination{Limit: limit})
	}
	return r.findAll(ctx, specs...)
}

func (r *KnowledgeRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.KnowledgeEntry{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *KnowledgeRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeEntry, error) {
	var m model.KnowledgeEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *KnowledgeRepositoryImpl) findAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeEntry, error) {
	var models []*model.KnowledgeEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
