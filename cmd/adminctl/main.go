package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/skyquote/skyquote/internal/database"
	"github.com/skyquote/skyquote/internal/services"
	appValidator "github.com/skyquote/skyquote/pkg/validator"
)

const usage = `Usage:
  adminctl grant-admin --email <address>
  adminctl link-pilot  --email <address> --pilot-id <uuid>

Connects to the database named by DATABASE_URL (a .env file is honoured).
`

// Operational identity management. Binding an email that already belongs to
// a principal of the other type is refused; identities never flip roles
// silently.
func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return fmt.Errorf("a command is required")
	}

	command := args[0]
	fs := flag.NewFlagSet("adminctl "+command, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var email, pilotID string
	fs.StringVar(&email, "email", "", "Email address of the identity")
	fs.StringVar(&pilotID, "pilot-id", "", "Pilot ID to bind (link-pilot only)")

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if err := appValidator.ValidateVar(email, "required,email"); err != nil {
		return fmt.Errorf("--email must be a valid email address")
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

	identities, err := services.NewIdentityService(db)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch command {
	case "grant-admin":
		identity, err := identities.UpsertAdmin(ctx, email)
		if err != nil {
			return err
		}
		fmt.Printf("admin identity ready: %s (%s)\n", identity.Email, identity.ID)
		return nil
	case "link-pilot":
		if strings.TrimSpace(pilotID) == "" {
			return fmt.Errorf("--pilot-id is required for link-pilot")
		}
		identity, err := identities.UpsertPilot(ctx, email, pilotID)
		if err != nil {
			return err
		}
		fmt.Printf("pilot identity ready: %s (%s)\n", identity.Email, identity.ID)
		return nil
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
