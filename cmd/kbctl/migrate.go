package main

import (
	"log"

	"kb-assistant-be/internal/model"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the knowledge schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	log.Println("Step 1: Setting up extensions...")
	// gen_random_uuid() backs the primary key default
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("[WARN] Failed to create pgcrypto extension: %v. Continuing...", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	if err := db.AutoMigrate(&model.KnowledgeEntry{}); err != nil {
		return err
	}

	log.Println("[INFO] Migration completed")
	return nil
}
