package resolver

import "fmt"

// Source names the stage that produced an answer.
type Source string

const (
	SourceExact   Source = "exact"
	SourceSynonym Source = "synonym"
	SourceFuzzy   Source = "fuzzy"
	SourceContent Source = "content"
	SourceLLM     Source = "llm"
	SourceDefault Source = "default"
)

// AnswerResult is the single outcome of one resolution. Score is set only by the fuzzy stage.
type AnswerResult struct {
	Source Source   `json:"source"`
	Text   string   `json:"text"`
	Score  *float64 `json:"score,omitempty"`
}

// UpstreamError is a collaborator failure inside a stage. The resolver logs it and moves on to the next stage.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("resolver %s stage: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
