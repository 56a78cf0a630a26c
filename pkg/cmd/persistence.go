// Package cmd holds the backend factories shared by the relay binaries.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/persistence/file"
	"github.com/dukex/relay/pkg/persistence/postgresql"
)

var ErrUnsupportedDatabase = errors.New("unsupported database url scheme")

// NewPersistence picks the backend from the url scheme: file:// or postgres(ql)://.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "file":
		return file.NewPersistence(databaseURL), nil
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
