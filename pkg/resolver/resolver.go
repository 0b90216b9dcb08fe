// Package resolver turns a query into exactly one AnswerResult by running a fixed chain of stages against the
// knowledge store, an optional LLM and finally a scripted default.
package resolver

import (
	"context"
	"strings"
	"time"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/metrics"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/llm"
	"kb-assistant-be/pkg/match"
	"kb-assistant-be/pkg/store"
)

// KnowledgeStore is the read side of the knowledge repository.
type KnowledgeStore interface {
	FindExact(ctx context.Context, question string) (*entity.KnowledgeEntry, error)
	FindBySubstring(ctx context.Context, pattern string, limit int, fields ...entity.KnowledgeField) ([]*entity.KnowledgeEntry, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.KnowledgeEntry, error)
}

type Config struct {
	// RecentLimit is how many recent entries the fuzzy stage scores.
	RecentLimit int
	// SnippetLimit is how many knowledge snippets go into the LLM prompt.
	SnippetLimit int
	// ChunkSize splits pending document context before the best chunk is picked for the prompt.
	ChunkSize     int
	LookupTimeout time.Duration
	LLMTimeout    time.Duration
}

func (c *Config) withDefaults() {
	if c.RecentLimit <= 0 {
		c.RecentLimit = 100
	}
	if c.SnippetLimit < 0 {
		c.SnippetLimit = 0
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1500
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 3 * time.Second
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 30 * time.Second
	}
}

type Resolver struct {
	store  KnowledgeStore
	llm    llm.LLMProvider
	gov    *governor.Governor
	scorer *match.Scorer
	tables *Tables
	cfg    Config
	logger logger.ILogger
}

// New builds a resolver. provider may be nil, which disables the LLM stage. Every store and LLM call is admitted
// through gov; a nil gov gets a private governor with capacity 4.
func New(ks KnowledgeStore, provider llm.LLMProvider, gov *governor.Governor, tables *Tables, scorer *match.Scorer, cfg Config, log logger.ILogger) *Resolver {
	cfg.withDefaults()
	if log == nil {
		log = logger.NewNopLogger()
	}
	if gov == nil {
		gov = governor.New(governor.Config{Name: "resolver", Capacity: 4}, log)
	}
	if tables == nil {
		tables = DefaultTables()
	}
	if scorer == nil {
		scorer = match.NewDefaultScorer()
	}
	return &Resolver{
		store:  ks,
		llm:    provider,
		gov:    gov,
		scorer: scorer,
		tables: tables,
		cfg:    cfg,
		logger: log,
	}
}

// LLMEnabled reports whether an LLM collaborator is configured.
func (r *Resolver) LLMEnabled() bool {
	return r.llm != nil
}

type ResolveOption func(*pass)

// WithDocumentContext lets the LLM stage quote the best matching part of an attached document.
func WithDocumentContext(fileName, text string) ResolveOption {
	return func(p *pass) {
		p.docName = fileName
		p.docText = text
	}
}

// pass carries per-resolution state between stages.
type pass struct {
	query   string
	docName string
	docText string

	recent       []*entity.KnowledgeEntry
	recentLoaded bool
}

type stage struct {
	name string
	run  func(ctx context.Context, p *pass) stageOutcome
}

// stageOutcome is either a match carrying the answer or no match.
type stageOutcome struct {
	matched bool
	result  AnswerResult
}

var noMatch = stageOutcome{}

func matched(res AnswerResult) stageOutcome {
	return stageOutcome{matched: true, result: res}
}

// Resolve always returns an answer. In kb mode the stages run exact, synonym, fuzzy, content, llm; in llm mode
// only llm. The default stage ends both chains. Collaborator failures never surface here.
func (r *Resolver) Resolve(ctx context.Context, query string, mode store.Mode, opts ...ResolveOption) AnswerResult {
	p := &pass{query: strings.TrimSpace(query)}
	for _, opt := range opts {
		opt(p)
	}

	if p.query != "" {
		for _, st := range r.chain(mode) {
			out := st.run(ctx, p)
			if out.matched {
				r.logger.Debug("Resolver", "Stage matched", map[string]interface{}{
					"stage": st.name,
					"mode":  string(mode),
				})
				r.record(out.result, mode)
				return out.result
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	res := r.defaultStage(p)
	r.record(res, mode)
	return res
}

func (r *Resolver) chain(mode store.Mode) []stage {
	llmStage := stage{name: "llm", run: r.llmStage}
	if mode == store.ModeLLM {
		return []stage{llmStage}
	}
	return []stage{
		{name: "exact", run: r.exactStage},
		{name: "synonym", run: r.synonymStage},
		{name: "fuzzy", run: r.fuzzyStage},
		{name: "content", run: r.contentStage},
		llmStage,
	}
}

func (r *Resolver) record(res AnswerResult, mode store.Mode) {
	metrics.AnswersTotal.WithLabelValues(string(res.Source), string(mode)).Inc()
}

// absorb logs a collaborator failure and lets the pipeline continue.
func (r *Resolver) absorb(stageName string, err error) {
	uerr := &UpstreamError{Stage: stageName, Err: err}
	metrics.StageFailuresTotal.WithLabelValues(stageName).Inc()
	r.logger.Warn("Resolver", "Stage failed, continuing with the next stage", map[string]interface{}{
		"stage":       stageName,
		"error":       uerr,
		"unavailable": governor.IsUnavailable(err),
	})
}

// lookup runs a store call under the governor with the lookup budget.
func lookup[T any](r *Resolver, ctx context.Context, stageName string, fn func(ctx context.Context) (T, error)) (T, error) {
	return governor.Run(r.gov, ctx, "lookup."+stageName, r.cfg.LookupTimeout, fn)
}

// recentEntries loads the recent window once per resolution.
func (r *Resolver) recentEntries(ctx context.Context, p *pass, stageName string) []*entity.KnowledgeEntry {
	if p.recentLoaded {
		return p.recent
	}
	entries, err := lookup(r, ctx, stageName, func(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
		return r.store.ListRecent(ctx, r.cfg.RecentLimit)
	})
	if err != nil {
		r.absorb(stageName, err)
		return nil
	}
	p.recent, p.recentLoaded = entries, true
	return entries
}
