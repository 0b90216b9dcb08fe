package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load question/answer pairs from a YAML file",
	Long: `Load question/answer pairs into the knowledge store.

The file holds a list of entries:

  - question: What are your opening hours?
    answer: We are open 9 to 5 on weekdays.
    content: optional longer text searched by the content stage

A question that already exists gets its answer replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

type seedEntry struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Content  string `yaml:"content"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	svc := service.NewKnowledgeService(unitofwork.NewRepositoryFactory(db), nil, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i, e := range entries {
		_, err := svc.Create(ctx, "kbctl", &dto.CreateKnowledgeRequest{
			Question: e.Question,
			Answer:   e.Answer,
			Content:  e.Content,
		})
		if err != nil {
			return fmt.Errorf("entry %d (%q): %w", i, e.Question, err)
		}
	}

	log.Printf("[INFO] Seeded %d knowledge entries", len(entries))
	return nil
}
