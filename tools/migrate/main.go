package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/orgball2608/reddit-research-bot/internal/migrations"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/pressly/goose/v3"
)

// sourceDir is where new migration files are written, relative to the repo root.
var sourceDir = filepath.Join("internal", "migrations", migrations.Dir)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|status|reset|version|create <name>]")
	}

	command := os.Args[1]

	// create writes a file to disk and needs no database
	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <name>")
		}
		createMigration(os.Args[2])
		return
	}

	switch command {
	case "up", "down", "status", "reset", "version":
	default:
		log.Fatalf("Unknown command: %s", command)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(context.Background(), db, command, os.Args[2:]...); err != nil {
		log.Fatalf("Migration %s failed: %v", command, err)
	}
	fmt.Printf("Migration %s finished\n", command)
}

func createMigration(name string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}

	dir := filepath.Join(wd, sourceDir)
	fmt.Printf("Creating migration in: %s\n", dir)

	if err := goose.Create(nil, dir, name, "sql"); err != nil {
		log.Fatalf("Failed to create migration: %v", err)
	}
}
