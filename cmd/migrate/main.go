package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"jobtrail/internal/config"
	"jobtrail/internal/domain"
	"jobtrail/pkg/database"
)

const usage = `
jobtrail - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all migrations (SQL + GORM)
  status      Show database connection status
  seed        Insert demo job records for local development
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  go run cmd/migrate/main.go reset
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch command {
	case "up":
		if err := database.ApplyRawMigrations(db, *migrationsDir); err != nil {
			log.Fatalf("Raw migrations failed: %v", err)
		}
		if err := db.AutoMigrate(&domain.Job{}, &domain.Attachment{}); err != nil {
			log.Fatalf("AutoMigrate failed: %v", err)
		}
		log.Println("Migrations applied")

	case "status":
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get database handle: %v", err)
		}
		if err := sqlDB.Ping(); err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}
		log.Println("Database connection OK")

	case "seed":
		if _, err := database.Seed(db, nil); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}

	case "reset":
		if err := db.Migrator().DropTable(&domain.Attachment{}, &domain.Job{}); err != nil {
			log.Fatalf("Drop tables failed: %v", err)
		}
		if err := database.ApplyRawMigrations(db, *migrationsDir); err != nil {
			log.Fatalf("Raw migrations failed: %v", err)
		}
		if err := db.AutoMigrate(&domain.Job{}, &domain.Attachment{}); err != nil {
			log.Fatalf("AutoMigrate failed: %v", err)
		}
		log.Println("Database reset")

	default:
		flag.Usage()
		os.Exit(1)
	}
}
