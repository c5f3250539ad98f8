package domain

import (
	"fmt"
	"strings"
	"time"
)

// Reason classifies why a customer became an outreach candidate.
type Reason string

const (
	// ReasonCycle: a product the customer owns is at or past its
	// replenishment cycle.
	ReasonCycle Reason = "cycle"
	// ReasonDormant: the customer has history but has not bought recently.
	ReasonDormant Reason = "dormant"
	// ReasonNoPurchase: the customer has never bought anything.
	ReasonNoPurchase Reason = "no_purchase"
	// ReasonNoPurchaseOld: never bought and registered long ago. Treated
	// like no_purchase for priority, kept distinct for messaging.
	ReasonNoPurchaseOld Reason = "no_purchase_old"
)

// reasonWeights orders reasons by urgency; lower weight wins when a
// customer matches more than one. The two no-purchase variants share a
// bucket.
var reasonWeights = map[Reason]int{
	ReasonCycle:         1,
	ReasonDormant:       2,
	ReasonNoPurchaseOld: 3,
	ReasonNoPurchase:    3,
}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	_, ok := reasonWeights[r]
	return ok
}

// Weight returns the priority weight for r; unknown reasons sort last.
func (r Reason) Weight() int {
	if w, ok := reasonWeights[r]; ok {
		return w
	}
	return 99
}

// ParseReasons parses a comma-separated reason list. Empty input yields
// all reasons. Unknown entries are rejected.
func ParseReasons(s string) ([]Reason, error) {
	if strings.TrimSpace(s) == "" {
		return []Reason{ReasonCycle, ReasonDormant, ReasonNoPurchaseOld, ReasonNoPurchase}, nil
	}
	var out []Reason
	for _, part := range strings.Split(s, ",") {
		r := Reason(strings.TrimSpace(part))
		if r == "" {
			continue
		}
		if !r.Valid() {
			return nil, fmt.Errorf("unknown reason %q", r)
		}
		out = append(out, r)
	}
	return out, nil
}

// CandidateEntry is an ephemeral (customer, reason) pair derived from
// aggregate purchase signals. Entries are recomputed on each refresh and
// have no lifecycle of their own.
type CandidateEntry struct {
	CustomerID int64  `json:"customer_id"`
	Reason     Reason `json:"reason"`
}

// Thresholds for candidate derivation. The cycle threshold matches the
// ranking engine's "due for replenishment" cutoff.
const (
	CandidateCycleProgress  = 0.8
	CandidateDormantDays    = 60
	CandidateOldCustomerAge = 90 * 24 * time.Hour
)

// DeriveCandidates rebuilds the candidate set from raw sales data. It is
// the shared core of every candidate-store refresh: the in-memory store
// runs it directly and the SQL stores use it to rebuild their
// rec_candidates table. One entry per customer, minimum-weight reason.
func DeriveCandidates(customers []Customer, products map[int64]Product, sales []Sale, now time.Time) []CandidateEntry {
	// Last purchase date overall and per product, per customer.
	lastSale := make(map[int64]time.Time)
	lastByProduct := make(map[int64]map[int64]time.Time)
	for _, s := range sales {
		if s.Date.After(lastSale[s.CustomerID]) {
			lastSale[s.CustomerID] = s.Date
		}
		byProduct := lastByProduct[s.CustomerID]
		if byProduct == nil {
			byProduct = make(map[int64]time.Time)
			lastByProduct[s.CustomerID] = byProduct
		}
		for _, l := range s.Lines {
			if s.Date.After(byProduct[l.ProductID]) {
				byProduct[l.ProductID] = s.Date
			}
		}
	}

	var out []CandidateEntry
	for _, c := range customers {
		last, hasHistory := lastSale[c.ID]
		if !hasHistory {
			reason := ReasonNoPurchase
			if !c.CreatedAt.IsZero() && now.Sub(c.CreatedAt) > CandidateOldCustomerAge {
				reason = ReasonNoPurchaseOld
			}
			out = append(out, CandidateEntry{CustomerID: c.ID, Reason: reason})
			continue
		}

		best := Reason("")
		for productID, bought := range lastByProduct[c.ID] {
			p, ok := products[productID]
			if !ok || p.CycleDays <= 0 {
				continue
			}
			progress := now.Sub(bought).Hours() / 24 / float64(p.CycleDays)
			if progress >= CandidateCycleProgress {
				best = ReasonCycle
				break
			}
		}
		if best == "" && now.Sub(last).Hours()/24 > CandidateDormantDays {
			best = ReasonDormant
		}
		if best != "" {
			out = append(out, CandidateEntry{CustomerID: c.ID, Reason: best})
		}
	}
	return out
}
