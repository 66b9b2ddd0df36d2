package main

import (
	"log"

	"preset-teaching-be/internal/config"
	"preset-teaching-be/internal/model"
	"preset-teaching-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.Database.Connection, true, database.DefaultPool)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to create pgcrypto: %v. Continuing...", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	if err := database.Migrate(db,
		&model.Preset{},
		&model.TeachingExample{},
		&model.TeachingRound{},
	); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating views...")
	postMigrationSQL := []string{
		`CREATE OR REPLACE VIEW teaching_round_summary AS
		 SELECT p.id AS preset_id, p.source_key, r.status, COUNT(*) AS rounds, MAX(r.created_at) AS last_round_at
		 FROM presets p JOIN teaching_rounds r ON r.preset_id = p.id
		 WHERE p.deleted_at IS NULL
		 GROUP BY p.id, p.source_key, r.status;`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("Database migration completed")
}
