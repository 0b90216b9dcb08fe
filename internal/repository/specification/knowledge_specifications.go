package specification

import (
	"strings"

	"kb-assistant-be/internal/entity"

	"gorm.io/gorm"
)

// QuestionEquals matches the stored question ignoring case and surrounding whitespace.
type QuestionEquals struct {
	Question string
}

func (s QuestionEquals) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("LOWER(TRIM(question)) = LOWER(?)", strings.TrimSpace(s.Question))
}

// ContainsAny matches rows where at least one of Fields contains Pattern. Wildcards in Pattern are escaped with
// backslash, the Postgres default LIKE escape.
type ContainsAny struct {
	Pattern string
	Fields  []entity.KnowledgeField
}

func (s ContainsAny) Apply(db *gorm.DB) *gorm.DB {
	fields := s.Fields
	if len(fields) == 0 {
		fields = []entity.KnowledgeField{entity.KnowledgeFieldQuestion}
	}

	pattern := "%" + EscapeLike(s.Pattern) + "%"
	clauses := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		if !f.Valid() {
			continue
		}
		// Column names come from the closed KnowledgeField set.
		clauses = append(clauses, string(f)+" ILIKE ?")
		args = append(args, pattern)
	}
	if len(clauses) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where(strings.Join(clauses, " OR "), args...)
}

// MostRecentFirst orders by creation time, newest first, with id as a stable tie-break.
type MostRecentFirst struct{}

func (MostRecentFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

// EscapeLike escapes the LIKE wildcards in s.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
