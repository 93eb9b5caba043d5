package main

import (
	"database/sql"
	"log"

	"lending-ledger/internal/config"
	"lending-ledger/internal/database"

	_ "github.com/lib/pq"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Reachability check before handing the DSN to GORM
	probe, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := probe.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	probe.Close()

	// Connect and migrate
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations applied successfully")
}
