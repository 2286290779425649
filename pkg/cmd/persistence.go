// Package cmd wires shared infrastructure for the leadflow binaries:
// persistence, event bus, locker and executor registry construction from
// configuration values.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vantagecrm/leadflow/pkg/persistence"
	"github.com/vantagecrm/leadflow/pkg/persistence/file"
	"github.com/vantagecrm/leadflow/pkg/persistence/postgresql"
)

// NewPersistence picks the persistence backend from the database URL
// scheme. postgres:// URLs get the PostgreSQL store with migrations
// applied; anything else is treated as a file store root path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize PostgreSQL persistence", "error", err)
			panic(err)
		}

		return store
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}
