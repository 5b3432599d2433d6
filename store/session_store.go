// tracker/store/session_store.go
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mabletask/tracker/models"
)

const DefaultStateKey = "mable_tracker_session"

// SessionStore checkpoints the visit ledger and session id to Storage.
// Persistence is best effort: nothing here returns an error to its caller,
// since the in-memory ledger stays authoritative for the current page.
type SessionStore struct {
	storage Storage
	key     string
	logger  *slog.Logger
}

func NewSessionStore(storage Storage, key string, logger *slog.Logger) *SessionStore {
	if key == "" {
		key = DefaultStateKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		storage: storage,
		key:     key,
		logger:  logger.With("component", "session_store"),
	}
}

// Load restores the last checkpoint. Missing, unreadable or corrupt state all
// yield an empty ledger.
func (s *SessionStore) Load() models.SessionState {
	empty := models.SessionState{VisitLedger: models.VisitLedger{}}

	var raw string
	err := guard(func() error {
		var err error
		raw, err = s.storage.Get(s.key)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return empty
	}
	if err != nil {
		s.logger.Warn("Error reading persisted session state, starting fresh", "state_key", s.key, "error", err)
		return empty
	}

	var state models.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.logger.Warn("Error parsing persisted session state, starting fresh", "state_key", s.key, "error", err)
		return empty
	}
	if state.VisitLedger == nil {
		state.VisitLedger = models.VisitLedger{}
	}
	return state
}

// Save writes a checkpoint and reports whether it landed.
func (s *SessionStore) Save(sessionID string, ledger models.VisitLedger, now time.Time) bool {
	data, err := json.Marshal(models.SessionState{
		SessionID:   sessionID,
		VisitLedger: ledger,
		SavedAt:     now,
	})
	if err != nil {
		s.logger.Error("Error encoding session state", "error", err)
		return false
	}

	err = guard(func() error { return s.storage.Set(s.key, string(data)) })
	if err != nil {
		s.logger.Warn("Error saving session state", "state_key", s.key, "bytes", len(data), "error", err)
		return false
	}
	return true
}

// Clear drops the persisted checkpoint.
func (s *SessionStore) Clear() bool {
	if err := guard(func() error { return s.storage.Remove(s.key) }); err != nil {
		s.logger.Warn("Error clearing session state", "state_key", s.key, "error", err)
		return false
	}
	return true
}

// guard turns a panicking storage adapter into an ordinary error.
func guard(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage panicked: %v", r)
		}
	}()
	return op()
}
