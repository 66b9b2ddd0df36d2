package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"preset-teaching-be/internal/config"
	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/repository/contract"
	"preset-teaching-be/internal/repository/unitofwork"
	"preset-teaching-be/pkg/database"
	"preset-teaching-be/pkg/preset"
)

func main() {
	owner := flag.String("owner", "", "owner key (JWT user_id) of the seeded presets")
	flag.Parse()
	if *owner == "" {
		log.Fatal("Error: -owner is required")
	}

	cfg := config.Load()
	db, err := database.Open(cfg.Database.Connection, false, database.DefaultPool)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo presets...")

	presets := []*entity.Preset{
		{
			SourceKey: "demo-aya",
			Document: preset.Document{
				"meta": map[string]interface{}{"name": "Aya", "description": "Cheerful shop assistant"},
				"parameters": map[string]interface{}{
					"appearance": map[string]interface{}{"desc": "red dress", "hair": "short black"},
					"voice":      map[string]interface{}{"speed": 1.0, "pitch": "high"},
					"greeting":   true,
				},
				"rules": []interface{}{
					map[string]interface{}{"id": "polite", "when": "always", "then": "answer politely", "enabled": true},
					map[string]interface{}{"id": "no-prices", "when": "asked about prices", "then": "refer to the counter", "enabled": false},
				},
			},
		},
		{
			SourceKey: "demo-ren",
			Document: preset.Document{
				"meta":       map[string]interface{}{"name": "Ren", "description": "Stoic guide"},
				"parameters": map[string]interface{}{"tone": "dry", "verbosity": "low"},
			},
		},
	}

	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(context.Background())
	for _, p := range presets {
		p.OwnerKey = *owner
		p.Name = p.Document.Name()
		err := uow.PresetRepository().Create(context.Background(), p)
		if errors.Is(err, contract.ErrDuplicateSource) {
			log.Printf("Preset '%s' already exists, skipping...", p.SourceKey)
			continue
		}
		if err != nil {
			log.Fatalf("Error: Failed to seed %s: %v", p.SourceKey, err)
		}
		log.Printf("Seeded preset '%s' (%s)", p.Name, p.Id)
	}

	log.Println("Seeding completed")
}
