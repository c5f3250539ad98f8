package main

import (
	"postventa/internal/audit"
	"postventa/internal/storage"
)

// backends bundles the storage collaborators picked at build time by
// the store_*.go files.
type backends struct {
	store      storage.Store
	candidates storage.CandidateStore
	recs       storage.RecommendationStore
	activity   audit.ActivityLogger
}
