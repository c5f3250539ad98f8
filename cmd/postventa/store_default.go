//go:build !sqlite && !postgres

package main

import (
	"os"

	"postventa/internal/audit"
	"postventa/internal/observability"
	"postventa/internal/storage"
)

// selectBackends returns in-memory storage when built without the
// 'sqlite' or 'postgres' tags.
func selectBackends(logger observability.Logger) backends {
	if os.Getenv("POSTVENTA_SQLITE_DSN") != "" {
		logger.Warn("POSTVENTA_SQLITE_DSN set, but binary not built with -tags sqlite; using in-memory store")
	}
	if os.Getenv("POSTVENTA_DATABASE_URL") != "" {
		logger.Warn("POSTVENTA_DATABASE_URL set, but binary not built with -tags postgres; using in-memory store")
	}
	store := storage.NewMemoryStore()
	return backends{
		store:      store,
		candidates: storage.NewMemoryCandidateStore(store),
		recs:       storage.NewMemoryRecommendationStore(store),
		activity:   audit.NewMemoryActivityLogger(),
	}
}
