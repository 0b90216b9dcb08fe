package entity

import (
	"time"

	"github.com/google/uuid"
)

type KnowledgeEntry struct {
	Id        uuid.UUID
	Question  string
	Answer    string
	Content   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// KnowledgeField names a searchable text column.
type KnowledgeField string

const (
	KnowledgeFieldQuestion KnowledgeField = "question"
	KnowledgeFieldAnswer   KnowledgeField = "answer"
	KnowledgeFieldContent  KnowledgeField = "content"
)

func (f KnowledgeField) Valid() bool {
	switch f {
	case KnowledgeFieldQuestion, KnowledgeFieldAnswer, KnowledgeFieldContent:
		return true
	}
	return false
}

// Value returns the text stored under f.
func (e *KnowledgeEntry) Value(f KnowledgeField) string {
	switch f {
	case KnowledgeFieldQuestion:
		return e.Question
	case KnowledgeFieldAnswer:
		return e.Answer
	case KnowledgeFieldContent:
		return e.Content
	}
	return ""
}
