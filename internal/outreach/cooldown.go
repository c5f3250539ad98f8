package outreach

import (
	"context"
	"time"

	"postventa/internal/domain"
	"postventa/internal/storage"
)

// CooldownGuard filters candidates before generation: reason allow-list
// first, then the cooldown window, then a hard daily cap. Candidate
// order is preserved throughout.
type CooldownGuard struct {
	recs       storage.RecommendationStore
	cooldown   time.Duration
	dailyLimit int
	allowed    map[domain.Reason]bool
}

// NewCooldownGuard builds a guard. Reasons nil or empty allows every
// reason. A dailyLimit <= 0 means no cap.
func NewCooldownGuard(recs storage.RecommendationStore, cooldownDays, dailyLimit int, reasons []domain.Reason) *CooldownGuard {
	var allowed map[domain.Reason]bool
	if len(reasons) > 0 {
		allowed = make(map[domain.Reason]bool, len(reasons))
		for _, r := range reasons {
			allowed[r] = true
		}
	}
	return &CooldownGuard{
		recs:       recs,
		cooldown:   time.Duration(cooldownDays) * 24 * time.Hour,
		dailyLimit: dailyLimit,
		allowed:    allowed,
	}
}

// Filter returns the candidates that survive the guard plus the count
// of those skipped by the cooldown window. A customer is on cooldown
// when they have a pending or sent recommendation generated within the
// window.
func (g *CooldownGuard) Filter(ctx context.Context, candidates []domain.CandidateEntry, now time.Time) ([]domain.CandidateEntry, int, error) {
	since := now.Add(-g.cooldown)
	skipped := 0

	kept := make([]domain.CandidateEntry, 0, len(candidates))
	for _, c := range candidates {
		if g.allowed != nil && !g.allowed[c.Reason] {
			continue
		}
		if g.cooldown > 0 {
			active, err := g.recs.HasActiveSince(ctx, c.CustomerID, since)
			if err != nil {
				return nil, 0, err
			}
			if active {
				skipped++
				continue
			}
		}
		kept = append(kept, c)
		if g.dailyLimit > 0 && len(kept) >= g.dailyLimit {
			break
		}
	}
	return kept, skipped, nil
}
