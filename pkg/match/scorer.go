// Package match scores how well a query fits a stored question/answer pair.
package match

import (
	"strings"
	"unicode"
)

// Weights for each signal of the score. The zero value disables every signal.
type Weights struct {
	ExactContains    float64 // either string contains the other
	WordOverlap      float64 // fraction of query tokens (len > 2) partially matching candidate tokens
	StartsWith       float64 // query starts with the candidate's first token
	EndsWith         float64 // query ends with the candidate's last token
	LengthSimilarity float64 // 1 - normalized length difference
	AnswerContains   float64 // candidate answer contains the query
}

// DefaultWeights are the production weights.
var DefaultWeights = Weights{
	ExactContains:    3.0,
	WordOverlap:      2.0,
	StartsWith:       1.5,
	EndsWith:         1.0,
	LengthSimilarity: 0.5,
	AnswerContains:   0.3,
}

// DefaultThreshold filters noise before ranking.
const DefaultThreshold = 0.3

// minTokenLen is the shortest query token that takes part in word overlap.
const minTokenLen = 3

// Scorer is immutable after construction and safe for concurrent use.
type Scorer struct {
	weights   Weights
	threshold float64
}

func NewScorer(weights Weights, threshold float64) *Scorer {
	return &Scorer{weights: weights, threshold: threshold}
}

// NewDefaultScorer uses DefaultWeights and DefaultThreshold.
func NewDefaultScorer() *Scorer {
	return NewScorer(DefaultWeights, DefaultThreshold)
}

func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Accept reports whether score passes the noise threshold.
func (s *Scorer) Accept(score float64) bool {
	return score > s.threshold
}

// Score compares query with a candidate question and answer. Matching is case-insensitive and ignores
// surrounding whitespace. The result is the weighted sum of all six signals, clamped at zero.
func (s *Scorer) Score(query, question, answer string) float64 {
	q := normalize(query)
	if q == "" {
		return 0
	}
	c := normalize(question)

	total := s.lexical(q, c, normalize(answer)) + s.weights.LengthSimilarity*lengthSimilarity(q, c)
	if total < 0 {
		return 0
	}
	return total
}

// Overlaps reports whether any signal other than length similarity fires, i.e. the strings share some text.
func (s *Scorer) Overlaps(query, question, answer string) bool {
	q := normalize(query)
	if q == "" {
		return false
	}
	return s.lexical(q, normalize(question), normalize(answer)) > 0
}

// lexical sums the text signals for already normalized input.
func (s *Scorer) lexical(q, c, a string) float64 {
	qTokens := tokenize(q)
	cTokens := tokenize(c)

	var total float64
	if c != "" && (strings.Contains(q, c) || strings.Contains(c, q)) {
		total += s.weights.ExactContains
	}
	total += s.weights.WordOverlap * wordOverlap(qTokens, cTokens)
	if len(cTokens) > 0 {
		if strings.HasPrefix(q, cTokens[0]) {
			total += s.weights.StartsWith
		}
		if strings.HasSuffix(q, cTokens[len(cTokens)-1]) {
			total += s.weights.EndsWith
		}
	}
	if a != "" && strings.Contains(a, q) {
		total += s.weights.AnswerContains
	}
	return total
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// wordOverlap is the share of significant query tokens that partially match at least one candidate token.
func wordOverlap(query, candidate []string) float64 {
	significant, matched := 0, 0
	for _, qt := range query {
		if len([]rune(qt)) < minTokenLen {
			continue
		}
		significant++
		for _, ct := range candidate {
			if strings.Contains(ct, qt) || (len([]rune(ct)) >= minTokenLen && strings.Contains(qt, ct)) {
				matched++
				break
			}
		}
	}
	if significant == 0 {
		return 0
	}
	return float64(matched) / float64(significant)
}

func lengthSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(longest)
}
