// Package dedup decides whether a page visit is worth recording.
//
// It is a sliding-window limiter keyed by normalized URL: a URL may be
// recorded again once its cooldown has elapsed, which separates genuine
// re-visits from duplicate firing (re-renders, back/forward).
package dedup

import (
	"time"

	"mabletask/tracker/models"
	"mabletask/tracker/utils"
)

const (
	DefaultCooldown = 30 * time.Second
)

var DefaultExcludedPaths = []string{"/admin"}

// Decision explains the outcome of Admit.
type Decision int

const (
	Accepted Decision = iota
	Excluded
	Cooldown
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Excluded:
		return "excluded"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Policy holds the fixed rules; the ledger it consults belongs to the session.
type Policy struct {
	cooldown time.Duration
	excluded []string
}

func NewPolicy(cooldown time.Duration, excludedPaths []string) Policy {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return Policy{
		cooldown: cooldown,
		excluded: append([]string(nil), excludedPaths...),
	}
}

func (p Policy) Cooldown() time.Duration { return p.cooldown }

// Excludes reports whether url lies under an excluded path prefix.
func (p Policy) Excludes(url string) bool {
	return utils.IsExcludedPath(url, p.excluded)
}

// Admit checks url against the ledger at time now. On acceptance the ledger
// entry is written as {now, count+1}; on rejection the ledger is untouched.
func (p Policy) Admit(ledger models.VisitLedger, url string, now time.Time) Decision {
	if p.Excludes(url) {
		return Excluded
	}

	key := utils.NormalizeURL(url)
	entry, seen := ledger[key]
	if seen && now.Sub(entry.Timestamp) < p.cooldown {
		return Cooldown
	}

	ledger[key] = models.LedgerEntry{Timestamp: now, Count: entry.Count + 1}
	return Accepted
}
