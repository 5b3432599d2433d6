package models

import "time"

// LedgerEntry is what the visit ledger remembers about one normalized URL.
type LedgerEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// VisitLedger maps a normalized page URL to its last recorded visit.
type VisitLedger map[string]LedgerEntry

// Clone returns a copy safe to hand outside the owning session.
func (l VisitLedger) Clone() VisitLedger {
	out := make(VisitLedger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Session is the browsing-session-scoped tracking context.
type Session struct {
	ID      string
	UserID  string
	Enabled bool
	Ledger  VisitLedger
}

// SessionState is the persisted snapshot of a Session.
type SessionState struct {
	SessionID   string      `json:"sessionId"`
	VisitLedger VisitLedger `json:"visitLedger"`
	SavedAt     time.Time   `json:"savedAt"`
}
