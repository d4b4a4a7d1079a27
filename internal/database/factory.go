package database

import (
	"fmt"
	"os"
	"path/filepath"

	"sincro-go/internal/config"
)

// NewDatabaseFromConfig opens the metadata database named by cfg and brings
// its schema up to date.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite database")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		path = cfg.Path
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return db, nil
}
