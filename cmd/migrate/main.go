// Package main provides a CLI tool for running the address book migrations.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/chain-ledger/internal/config"
	"github.com/chain-ledger/internal/storage"
)

func main() {
	action := flag.String("action", "up", "Migration action: up, down, version")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := runMigrations(cfg.Database.Postgres.URL(), *action); err != nil {
		log.Fatalf("Postgres migration failed: %v", err)
	}
}

func runMigrations(databaseURL, action string) error {
	switch action {
	case "up":
		log.Println("Running address book migrations...")
		if err := storage.RunMigrations(databaseURL); err != nil {
			return err
		}
		log.Println("Migrations completed successfully")

	case "down":
		log.Println("Rolling back last migration...")
		if err := storage.RollbackMigrations(databaseURL); err != nil {
			return err
		}
		log.Println("Migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL)
		if err != nil {
			return err
		}
		log.Printf("Current migration version: %d (dirty: %v)", version, dirty)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}
