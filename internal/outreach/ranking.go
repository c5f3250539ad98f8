// Package outreach implements the recommendation engine: candidate
// detection, product ranking, message composition, cooldown filtering,
// the recommendation lifecycle and the scheduled runner.
package outreach

import (
	"errors"
	"sort"
	"time"

	"postventa/internal/domain"
)

// ErrNoEligibleProducts is returned when the active in-stock catalog is
// empty. No recommendation may be created in that case.
var ErrNoEligibleProducts = errors.New("no eligible products to recommend")

// TopN bounds.
const (
	DefaultTopN = 3
	MaxTopN     = 5
)

// Ranking score weights.
const (
	dueProgress      = 0.8
	upcomingProgress = 0.5

	dueBonus       = 0.4
	upcomingBonus  = 0.2
	favoriteBonus  = 0.35
	popularityBase = 0.4
	genericScore   = 0.1
	stockWeight    = 0.01
)

// Option reasons, most significant first. The composer turns these into
// message clauses.
const (
	OptionDue      = "due_replenishment"
	OptionUpcoming = "approaching_replenishment"
	OptionFavorite = "most_purchased"
	OptionPopular  = "popular"
	OptionGeneric  = "generic"
)

// Option is a ranked product suggestion.
type Option struct {
	Product domain.Product
	Score   float64
	Reason  string
}

// ClampTopN normalizes a requested option count. Zero or negative means
// the default; values above the cap are truncated.
func ClampTopN(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	if n > MaxTopN {
		return MaxTopN
	}
	return n
}

// RankOptions scores the eligible catalog for one customer and returns
// the top options, best first. It is pure: same inputs, same output.
//
// History is the customer's orders most-recent-first. Popularity is the
// units-sold aggregate over recent orders, used only when the customer
// has no history. Catalog must already be restricted to active in-stock
// products.
func RankOptions(history []domain.Sale, popularity []domain.ProductSales, catalog []domain.Product, topN int, now time.Time) ([]Option, error) {
	if len(catalog) == 0 {
		return nil, ErrNoEligibleProducts
	}
	topN = ClampTopN(topN)

	var opts []Option
	var favoriteID int64
	if len(history) > 0 {
		opts, favoriteID = rankFromHistory(history, catalog, now)
	} else {
		opts = rankFromPopularity(popularity, catalog)
	}

	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].Score != opts[j].Score {
			return opts[i].Score > opts[j].Score
		}
		return opts[i].Product.ID < opts[j].Product.ID
	})

	opts = promoteFavorite(opts, favoriteID, topN)
	if len(opts) > topN {
		opts = opts[:topN]
	}
	return opts, nil
}

func rankFromHistory(history []domain.Sale, catalog []domain.Product, now time.Time) ([]Option, int64) {
	lastBought := make(map[int64]time.Time)
	units := make(map[int64]int)
	for _, sale := range history {
		for _, line := range sale.Lines {
			if _, seen := lastBought[line.ProductID]; !seen {
				lastBought[line.ProductID] = sale.Date
			}
			units[line.ProductID] += line.Quantity
		}
	}
	favoriteID := favoriteProduct(units)

	opts := make([]Option, 0, len(catalog))
	for _, p := range catalog {
		score := 0.0
		reason := OptionGeneric

		if last, ok := lastBought[p.ID]; ok && p.CycleDays > 0 {
			progress := now.Sub(last).Hours() / 24 / float64(p.CycleDays)
			if progress >= dueProgress {
				score += dueBonus
				reason = OptionDue
			} else if progress >= upcomingProgress {
				score += upcomingBonus
				reason = OptionUpcoming
			}
		}
		if p.ID == favoriteID {
			score += favoriteBonus
			if reason != OptionDue {
				reason = OptionFavorite
			}
		}
		score += stockWeight * clamp(float64(p.Stock)/100, 0, 1)

		opts = append(opts, Option{Product: p, Score: score, Reason: reason})
	}
	return opts, favoriteID
}

func rankFromPopularity(popularity []domain.ProductSales, catalog []domain.Product) []Option {
	units := make(map[int64]int, len(popularity))
	maxUnits := 0
	for _, ps := range popularity {
		units[ps.ProductID] = ps.Units
		if ps.Units > maxUnits {
			maxUnits = ps.Units
		}
	}

	opts := make([]Option, 0, len(catalog))
	for _, p := range catalog {
		score := genericScore
		reason := OptionGeneric
		if u, ok := units[p.ID]; ok && maxUnits > 0 {
			score = popularityBase * (float64(u) / float64(maxUnits))
			reason = OptionPopular
		}
		opts = append(opts, Option{Product: p, Score: score, Reason: reason})
	}
	return opts
}

// favoriteProduct picks the product with the most units bought,
// smallest ID on ties. Returns 0 when there is no history.
func favoriteProduct(units map[int64]int) int64 {
	var favID int64
	best := 0
	for id, u := range units {
		if u > best || (u == best && best > 0 && id < favID) {
			favID = id
			best = u
		}
	}
	return favID
}

// promoteFavorite guarantees the historical favorite is not dropped by
// the cut: when eligible but outside the top slots it is moved to rank
// first.
func promoteFavorite(opts []Option, favoriteID int64, topN int) []Option {
	if favoriteID == 0 {
		return opts
	}
	favIdx := -1
	for i, o := range opts {
		if o.Product.ID == favoriteID {
			favIdx = i
			break
		}
	}
	if favIdx < 0 || favIdx < topN {
		return opts
	}
	fav := opts[favIdx]
	rest := append([]Option{}, opts[:favIdx]...)
	return append([]Option{fav}, rest...)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
