package resolver

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// minReverseMatch is the shortest query that may match by being contained in a synonym.
const minReverseMatch = 3

// SynonymRow maps a canonical phrase to the phrasings users tend to type instead.
type SynonymRow struct {
	Canonical string   `yaml:"canonical"`
	Synonyms  []string `yaml:"synonyms"`
}

type Pattern struct {
	Category string `yaml:"category"`
	Regex    string `yaml:"regex"`

	re *regexp.Regexp
}

// Tables is the data the synonym and default stages run on.
type Tables struct {
	Synonyms         []SynonymRow      `yaml:"synonyms"`
	Patterns         []Pattern         `yaml:"patterns"`
	FallbackCategory string            `yaml:"fallback_category"`
	Templates        map[string]string `yaml:"templates"`
	Hint             string            `yaml:"hint"`
}

// DefaultTables returns the embedded tables.
func DefaultTables() *Tables {
	t, err := ParseTables(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("embedded resolver tables: %v", err))
	}
	return t
}

// LoadTables reads tables from path, or returns the embedded tables when path is empty.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resolver tables: %w", err)
	}
	return ParseTables(data)
}

func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse resolver tables: %w", err)
	}
	if t.FallbackCategory == "" {
		t.FallbackCategory = "general"
	}
	for i := range t.Patterns {
		re, err := regexp.Compile(t.Patterns[i].Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", t.Patterns[i].Category, err)
		}
		t.Patterns[i].re = re
	}
	for i := range t.Synonyms {
		row := &t.Synonyms[i]
		row.Canonical = strings.ToLower(strings.TrimSpace(row.Canonical))
		if row.Canonical == "" {
			return nil, fmt.Errorf("synonym row %d has no canonical phrase", i)
		}
		for j, s := range row.Synonyms {
			row.Synonyms[j] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	if _, ok := t.Templates[t.FallbackCategory]; !ok {
		return nil, fmt.Errorf("no template for fallback category %q", t.FallbackCategory)
	}
	return &t, nil
}

// MatchSynonyms returns the canonical phrases whose row matches query, in table order.
func (t *Tables) MatchSynonyms(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []string
	for _, row := range t.Synonyms {
		if row.matches(q) {
			out = append(out, row.Canonical)
		}
	}
	return out
}

func (r SynonymRow) matches(q string) bool {
	if strings.Contains(q, r.Canonical) {
		return true
	}
	for _, s := range r.Synonyms {
		if s == "" {
			continue
		}
		if strings.Contains(q, s) || (len([]rune(q)) >= minReverseMatch && strings.Contains(s, q)) {
			return true
		}
	}
	return false
}

// Classify returns the category of the first matching pattern, or the fallback category.
func (t *Tables) Classify(query string) string {
	for _, p := range t.Patterns {
		if p.re != nil && p.re.MatchString(query) {
			return p.Category
		}
	}
	return t.FallbackCategory
}

// Render fills the category template and appends the add-knowledge hint.
func (t *Tables) Render(category, query string) string {
	tmpl, ok := t.Templates[category]
	if !ok {
		tmpl = t.Templates[t.FallbackCategory]
	}
	q := strings.TrimSpace(query)
	text := strings.ReplaceAll(tmpl, "{query}", q)
	if t.Hint != "" {
		text += " " + strings.ReplaceAll(t.Hint, "{query}", q)
	}
	return text
}
