package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/skyquote/skyquote/internal/database"
)

// Seeds demo pilots and enquiries, all tagged with the seed sentinel so
// --reset can remove them without touching real data. Refuses to run
// without --confirm.
func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("skyquote-seed", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var confirm, reset bool
	fs.BoolVar(&confirm, "confirm", false, "Acknowledge this writes demo data to the target database")
	fs.BoolVar(&reset, "reset", false, "Remove previously seeded demo rows instead of inserting")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("refusing to touch the database without --confirm")
	}

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

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("prepare schema: %w", err)
	}

	if reset {
		if err := database.ResetDemoData(db); err != nil {
			return err
		}
		fmt.Println("seeded demo rows removed")
		return nil
	}

	if err := database.SeedDemoData(db); err != nil {
		return err
	}
	fmt.Println("demo data seeded")
	return nil
}
