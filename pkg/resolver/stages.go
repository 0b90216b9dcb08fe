package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/llm"
	"kb-assistant-be/pkg/utils"
)

func (r *Resolver) exactStage(ctx context.Context, p *pass) stageOutcome {
	entry, err := lookup(r, ctx, "exact", func(ctx context.Context) (*entity.KnowledgeEntry, error) {
		return r.store.FindExact(ctx, p.query)
	})
	if err != nil {
		r.absorb("exact", err)
		return noMatch
	}
	if entry == nil {
		return noMatch
	}
	return matched(AnswerResult{Source: SourceExact, Text: entry.Answer})
}

func (r *Resolver) synonymStage(ctx context.Context, p *pass) stageOutcome {
	for _, canonical := range r.tables.MatchSynonyms(p.query) {
		entries, err := lookup(r, ctx, "synonym", func(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
			return r.store.FindBySubstring(ctx, canonical, 1, entity.KnowledgeFieldQuestion)
		})
		if err != nil {
			r.absorb("synonym", err)
			if ctx.Err() != nil {
				return noMatch
			}
			continue
		}
		if len(entries) > 0 {
			return matched(AnswerResult{Source: SourceSynonym, Text: entries[0].Answer})
		}
	}
	return noMatch
}

// fuzzyStage picks the best scoring recent entry above the threshold. Equal scores keep the earlier entry.
func (r *Resolver) fuzzyStage(ctx context.Context, p *pass) stageOutcome {
	var best *entity.KnowledgeEntry
	var bestScore float64
	for _, e := range r.recentEntries(ctx, p, "fuzzy") {
		score := r.scorer.Score(p.query, e.Question, e.Answer)
		if !r.scorer.Accept(score) {
			continue
		}
		if best == nil || score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return noMatch
	}
	score := bestScore
	return matched(AnswerResult{Source: SourceFuzzy, Text: best.Answer, Score: &score})
}

func (r *Resolver) contentStage(ctx context.Context, p *pass) stageOutcome {
	entries, err := lookup(r, ctx, "content", func(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
		return r.store.FindBySubstring(ctx, p.query, 1, entity.KnowledgeFieldAnswer, entity.KnowledgeFieldContent)
	})
	if err != nil {
		r.absorb("content", err)
		return noMatch
	}
	if len(entries) == 0 {
		return noMatch
	}
	return matched(AnswerResult{Source: SourceContent, Text: entries[0].Answer})
}

func (r *Resolver) llmStage(ctx context.Context, p *pass) stageOutcome {
	if r.llm == nil {
		return noMatch
	}

	messages := buildPrompt(p.query, r.snippets(ctx, p), p.docName, r.bestChunk(p))
	text, err := governor.Run(r.gov, ctx, "llm", r.cfg.LLMTimeout, func(ctx context.Context) (string, error) {
		return r.llm.Chat(ctx, messages, llm.WithTemperature(0.3))
	})
	if err != nil {
		r.absorb("llm", err)
		return noMatch
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.absorb("llm", llm.ErrEmptyResponse)
		return noMatch
	}
	return matched(AnswerResult{Source: SourceLLM, Text: text})
}

func (r *Resolver) defaultStage(p *pass) AnswerResult {
	category := r.tables.Classify(p.query)
	return AnswerResult{Source: SourceDefault, Text: r.tables.Render(category, p.query)}
}

// snippets returns the highest scoring recent entries with any lexical overlap, best first.
func (r *Resolver) snippets(ctx context.Context, p *pass) []*entity.KnowledgeEntry {
	if r.cfg.SnippetLimit == 0 {
		return nil
	}

	type scored struct {
		entry *entity.KnowledgeEntry
		score float64
	}
	var candidates []scored
	for _, e := range r.recentEntries(ctx, p, "llm") {
		if !r.scorer.Overlaps(p.query, e.Question, e.Answer) {
			continue
		}
		candidates = append(candidates, scored{entry: e, score: r.scorer.Score(p.query, e.Question, e.Answer)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	n := r.cfg.SnippetLimit
	if len(candidates) < n {
		n = len(candidates)
	}
	out := make([]*entity.KnowledgeEntry, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].entry
	}
	return out
}

// bestChunk returns the overlapping document chunk that scores highest against the query, or the first chunk when
// none overlaps.
func (r *Resolver) bestChunk(p *pass) string {
	if strings.TrimSpace(p.docText) == "" {
		return ""
	}
	chunks := utils.SplitText(p.docText, r.cfg.ChunkSize, r.cfg.ChunkSize/10)
	best, bestScore := 0, 0.0
	for i, c := range chunks {
		if !r.scorer.Overlaps(p.query, c, "") {
			continue
		}
		if s := r.scorer.Score(p.query, c, ""); s > bestScore {
			best, bestScore = i, s
		}
	}
	return chunks[best]
}

const systemPrompt = "You are a helpful assistant answering users of a knowledge base. Answer briefly and plainly. " +
	"Use the knowledge snippets and the document excerpt when they are relevant. " +
	"If you do not know the answer, say so instead of guessing."

func buildPrompt(query string, snippets []*entity.KnowledgeEntry, docName, docChunk string) []llm.Message {
	var b strings.Builder
	if len(snippets) > 0 {
		b.WriteString("Knowledge snippets:\n")
		for i, s := range snippets {
			fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, s.Question, s.Answer)
		}
		b.WriteString("\n")
	}
	if docChunk != "" {
		name := docName
		if name == "" {
			name = "attached document"
		}
		fmt.Fprintf(&b, "Excerpt from %s:\n%s\n\n", name, docChunk)
	}
	fmt.Fprintf(&b, "Question: %s", query)

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}
