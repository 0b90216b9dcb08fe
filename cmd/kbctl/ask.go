package main

import (
	"context"
	"fmt"

	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/implementation"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/llm/factory"
	"kb-assistant-be/pkg/match"
	"kb-assistant-be/pkg/resolver"
	"kb-assistant-be/pkg/store"

	"github.com/spf13/cobra"
)

var askLLMFirst bool

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Resolve a query against the knowledge store and print which stage answered",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askLLMFirst, "llm", false, "Resolve in llm-first mode")
}

func runAsk(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	baseURL := cfg.Ai.OllamaBaseURL
	if cfg.Ai.LLMProvider == "openai" {
		baseURL = cfg.Ai.OpenAIBaseURL
	}
	provider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  baseURL,
		APIKey:   cfg.Ai.OpenAIAPIKey,
	})
	if err != nil {
		return err
	}

	tables, err := resolver.LoadTables(cfg.Resolver.TablesPath)
	if err != nil {
		return err
	}

	log := logger.NewNopLogger()
	if verbose {
		log = logger.New(logger.Options{Level: "debug", Console: true})
	}

	ops := governor.New(governor.Config{Name: "operations", Capacity: cfg.Governor.OperationCapacity}, log)
	defer ops.Shutdown(context.Background())

	r := resolver.New(
		implementation.NewKnowledgeRepository(db),
		provider,
		ops,
		tables,
		match.NewScorer(match.DefaultWeights, cfg.Resolver.Threshold),
		resolver.Config{
			RecentLimit:   cfg.Resolver.RecentLimit,
			SnippetLimit:  cfg.Resolver.SnippetLimit,
			ChunkSize:     cfg.Session.ContextChunkSize,
			LookupTimeout: cfg.Governor.LookupTimeout,
			LLMTimeout:    cfg.Governor.LLMTimeout,
		},
		log,
	)

	mode := store.ModeKB
	if askLLMFirst {
		mode = store.ModeLLM
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := r.Resolve(ctx, args[0], mode)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source: %s\n", res.Source)
	if res.Score != nil {
		fmt.Fprintf(out, "score:  %.3f\n", *res.Score)
	}
	fmt.Fprintf(out, "answer: %s\n", res.Text)
	return nil
}
