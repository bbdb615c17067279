// Package cmd builds the shared dependencies of the flytestate commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flytestate/pkg/persistence"
	"github.com/dukex/flytestate/pkg/persistence/file"
	"github.com/dukex/flytestate/pkg/persistence/postgresql"
)

// PersistenceProvider names the backend selected by a database url:
// postgres:// and postgresql:// select PostgreSQL, anything else is a
// file:// root or a plain directory.
func PersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := PersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Initializing persistence", "provider", provider)

	switch provider {
	case "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger.With("module", "postgresql"), databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgresql persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
