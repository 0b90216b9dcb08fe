package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateKnowledgeRequest struct {
	Question string `json:"question" validate:"required,max=1000"`
	Answer   string `json:"answer" validate:"required,max=10000"`
	Content  string `json:"content" validate:"max=100000"`
}

type UpdateKnowledgeRequest struct {
	Id       uuid.UUID
	Question string `json:"question" validate:"required,max=1000"`
	Answer   string `json:"answer" validate:"required,max=10000"`
	Content  string `json:"content" validate:"max=100000"`
}

type KnowledgeResponse struct {
	Id        uuid.UUID  `json:"id"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Content   string     `json:"content,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type ListKnowledgeResponse struct {
	Items []*KnowledgeResponse `json:"items"`
	Total int64                `json:"total"`
}
