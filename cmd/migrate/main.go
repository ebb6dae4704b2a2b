package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/skyquote/skyquote/internal/database"
)

// Applies pending SQL migrations from a directory against DATABASE_URL.
// Exits non-zero on the first failure, leaving later files unapplied.
func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("skyquote-migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var dir string
	fs.StringVar(&dir, "dir", "./migrations", "Directory containing *.sql migration files")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// .env is optional; real environments set DATABASE_URL directly.
	_ = godotenv.Load()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := database.OpenURL(databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	applied, err := database.Migrate(db, dir)
	if err != nil {
		return err
	}

	if applied == 0 {
		fmt.Println("nothing to apply, ledger is up to date")
	} else {
		fmt.Printf("applied %d migration(s)\n", applied)
	}
	return nil
}
