package mapper

import (
	"time"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/model"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) ToEntity(k *model.KnowledgeEntry) *entity.KnowledgeEntry {
	if k == nil {
		return nil
	}

	var updatedAt *time.Time
	if !k.UpdatedAt.IsZero() {
		t := k.UpdatedAt
		updatedAt = &t
	}

	return &entity.KnowledgeEntry{
		Id:        k.Id,
		Question:  k.Question,
		Answer:    k.Answer,
		Content:   k.Content,
		CreatedAt: k.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *KnowledgeMapper) ToModel(k *entity.KnowledgeEntry) *model.KnowledgeEntry {
	if k == nil {
		return nil
	}

	var updatedAt time.Time
	if k.UpdatedAt != nil {
		updatedAt = *k.UpdatedAt
	}

	return &model.KnowledgeEntry{
		Id:        k.Id,
		Question:  k.Question,
		Answer:    k.Answer,
		Content:   k.Content,
		CreatedAt: k.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *KnowledgeMapper) ToEntities(entries []*model.KnowledgeEntry) []*entity.KnowledgeEntry {
	entities := make([]*entity.KnowledgeEntry, len(entries))
	for i, k := range entries {
		entities[i] = m.ToEntity(k)
	}
	return entities
}
