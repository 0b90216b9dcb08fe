package model

import (
	"time"

	"github.com/google/uuid"
)

type KnowledgeEntry struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Question  string    `gorm:"type:text;not null;index:idx_knowledge_question_lower,expression:lower(question)"`
	Answer    string    `gorm:"type:text;not null"`
	Content   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (KnowledgeEntry) TableName() string {
	return "knowledge_entries"
}
