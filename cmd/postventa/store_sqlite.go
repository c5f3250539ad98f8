//go:build sqlite && !postgres

package main

import (
	"os"

	"postventa/internal/audit"
	"postventa/internal/observability"
	"postventa/internal/storage"
	sqlitestore "postventa/internal/storage/sqlite"
)

func sqliteDSN() string {
	dsn := os.Getenv("POSTVENTA_SQLITE_DSN")
	if dsn == "" {
		dsn = "file:postventa.db?cache=shared&_fk=1"
	}
	return dsn
}

// selectBackends returns SQLite-backed storage when built with the
// 'sqlite' tag, falling back to memory when the database cannot open.
func selectBackends(logger observability.Logger) backends {
	dsn := sqliteDSN()
	st, err := sqlitestore.New(dsn)
	if err != nil {
		logger.Error("sqlite init failed, falling back to memory store", "error", err)
		store := storage.NewMemoryStore()
		return backends{
			store:      store,
			candidates: storage.NewMemoryCandidateStore(store),
			recs:       storage.NewMemoryRecommendationStore(store),
			activity:   audit.NewMemoryActivityLogger(),
		}
	}
	logger.Info("using sqlite store", "dsn", dsn)

	activity, err := audit.NewSQLiteActivityLoggerFromDB(st.DB())
	if err != nil {
		logger.Error("sqlite activity log init failed, falling back to memory", "error", err)
		return backends{store: st, candidates: st, recs: st, activity: audit.NewMemoryActivityLogger()}
	}
	return backends{store: st, candidates: st, recs: st, activity: activity}
}
