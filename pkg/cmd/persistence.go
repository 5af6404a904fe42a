// Package cmd provides common initialization for the command-line daemons.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/loopworklabs/loopwork/pkg/dedupe"
	"github.com/loopworklabs/loopwork/pkg/persistence"
	"github.com/loopworklabs/loopwork/pkg/persistence/memory"
	"github.com/loopworklabs/loopwork/pkg/persistence/postgres"
)

// NewPersistence selects the storage backend from the database URL scheme.
// An empty URL falls back to the in-process store, which is only suitable
// for development and tests.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.NewPersistence(ctx, logger, databaseURL)
	default:
		logger.Warn("No database URL configured, using in-process persistence")

		return memory.NewPersistence(), nil
	}
}

// NewDedupeStore selects the trigger idempotency backend from the Redis URL.
func NewDedupeStore(logger *slog.Logger, redisURL string) (dedupe.Store, error) {
	if redisURL == "" {
		logger.Warn("No Redis URL configured, using in-process dedupe store")

		return dedupe.NewMemoryStore(), nil
	}

	return dedupe.NewRedisStore(redisURL)
}
