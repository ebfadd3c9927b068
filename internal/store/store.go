package store

import (
	"context"
	"errors"
	"time"

	"burn.note/internal/models"
)

var (
	// ErrNotFound covers unknown, deleted and expired tokens alike.
	ErrNotFound     = errors.New("message not found")
	ErrAccessDenied = errors.New("message is bound to another reader")
	// ErrConflict means the token is already taken. Nothing was written.
	ErrConflict = errors.New("token already exists")
)

// Horizon fixes the instant expiry predicates are evaluated at.
// A message is expired when its active_until is at or before Now, or when it
// was created before RetainedSince.
type Horizon struct {
	Now           time.Time
	RetainedSince time.Time
}

// NewHorizon builds a Horizon at now with the given retention ceiling.
func NewHorizon(now time.Time, retention time.Duration) Horizon {
	return Horizon{Now: now, RetainedSince: now.Add(-retention)}
}

// Expired reports whether m is logically gone at h.
func (h Horizon) Expired(m *models.Message) bool {
	if m.CreatedAt.Before(h.RetainedSince) {
		return true
	}
	return m.ActiveUntil != nil && !m.ActiveUntil.After(h.Now)
}

type Store interface {
	// Create persists msg in the unbound state. It returns ErrConflict if
	// msg.Token is already in use and never overwrites an existing row.
	Create(ctx context.Context, msg *models.Message) error

	// RevealOrBind returns the message for token if fingerprint may read it.
	// An unbound message is bound to fingerprint with active_until set to its
	// deadline in one conditional write; exactly one concurrent caller wins.
	// Returns ErrNotFound for missing or expired messages and ErrAccessDenied
	// when the message is bound to a different fingerprint.
	RevealOrBind(ctx context.Context, token, fingerprint string, h Horizon) (*models.Message, error)

	// Destroy deletes the message only if it is bound to fingerprint.
	Destroy(ctx context.Context, token, fingerprint string) (bool, error)

	// Purge deletes every message expired at h and returns how many it removed.
	Purge(ctx context.Context, h Horizon) (int64, error)

	Close() error
}
