package main

import (
	"database/sql"
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/hurley87/irl-protocol/internal/config"
	"github.com/hurley87/irl-protocol/internal/database/migrations"
	"github.com/hurley87/irl-protocol/internal/logger"
)

func main() {
	var (
		dir  = flag.String("dir", "./migrations", "directory holding the .sql migration files")
		seed = flag.Bool("seed", false, "apply demo seed data after the schema migrations")
		down = flag.Bool("down", false, "roll every migration back")
		to   = flag.Uint("to", 0, "migrate to an exact version (0 means ignore)")
	)
	flag.Parse()

	log := logger.NewLogger("migrate")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}

	runner := migrations.NewRunner(db, migrations.Options{Dir: *dir, Seed: *seed}, log)
	defer runner.Close()

	switch {
	case *down:
		if err := runner.Down(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "All migrations rolled back")
	case *to > 0:
		if err := runner.To(*to); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", fmt.Sprintf("Migrated to version %d", *to))
	default:
		if err := runner.Run(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "Migrations applied")
	}
}
