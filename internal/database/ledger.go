package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skyquote/skyquote/pkg/logger"
)

// SchemaMigration is one row of the migration ledger. A file listed here has
// been applied exactly once and will be skipped on subsequent runs.
type SchemaMigration struct {
	MigrationName string    `gorm:"column:migration_name;primaryKey"`
	AppliedAt     time.Time `gorm:"column:applied_at;not null"`
}

// TableName pins the ledger table name regardless of naming strategy.
func (SchemaMigration) TableName() string { return "schema_migrations" }

// Migrate applies pending *.sql files from dir in lexical order. Each file
// runs inside its own transaction together with its ledger insert, so a
// mid-migration crash never leaves a file half-applied but recorded (or the
// reverse). Returns the number of files applied; stops at the first failure,
// leaving later files unapplied.
func Migrate(db *gorm.DB, dir string) (int, error) {
	if db == nil {
		return 0, errors.New("migrate: nil database handle")
	}

	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return 0, fmt.Errorf("migrate: ensure ledger table: %w", err)
	}

	files, err := pendingFiles(db, dir)
	if err != nil {
		return 0, err
	}

	log := logger.WithModule("migrate")
	applied := 0
	for _, name := range files {
		statements, err := readStatements(filepath.Join(dir, name))
		if err != nil {
			return applied, err
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range statements {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("exec: %w", err)
				}
			}
			return tx.Create(&SchemaMigration{
				MigrationName: name,
				AppliedAt:     time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migrate: apply %s: %w", name, err)
		}

		applied++
		log.Info("migration applied", zap.String("file", name))
	}

	return applied, nil
}

func pendingFiles(db *gorm.DB, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir %s: %w", dir, err)
	}

	var recorded []SchemaMigration
	if err := db.Find(&recorded).Error; err != nil {
		return nil, fmt.Errorf("migrate: read ledger: %w", err)
	}
	done := make(map[string]struct{}, len(recorded))
	for _, row := range recorded {
		done[row.MigrationName] = struct{}{}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if _, ok := done[entry.Name()]; ok {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func readStatements(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("migrate: read file %s: %w", path, err)
	}

	var statements []string
	for _, chunk := range strings.Split(string(raw), ";") {
		stmt := strings.TrimSpace(chunk)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("migrate: %s contains no statements", filepath.Base(path))
	}
	return statements, nil
}
