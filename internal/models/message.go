package models

import (
	"fmt"
	"time"
)

// TTLUnit is the unit a message's TTLValue is expressed in.
type TTLUnit string

const (
	TTLMinutes TTLUnit = "minutes"
	TTLSeconds TTLUnit = "seconds"
)

// Duration returns the length of one unit.
func (u TTLUnit) Duration() (time.Duration, error) {
	switch u {
	case TTLMinutes:
		return time.Minute, nil
	case TTLSeconds:
		return time.Second, nil
	default:
		return 0, fmt.Errorf("unknown ttl unit %q", string(u))
	}
}

type Message struct {
	ID               string     `json:"-"` // storage-assigned
	Text             string     `json:"text"`
	Token            string     `json:"token"`
	TTLUnit          TTLUnit    `json:"ttl_unit"`
	TTLValue         int        `json:"ttl_value"`
	CreatedAt        time.Time  `json:"created_at"`
	ActiveUntil      *time.Time `json:"active_until,omitempty"`
	BoundFingerprint *string    `json:"-"`
}

// Window is the length of the expiry window.
func (m *Message) Window() (time.Duration, error) {
	unit, err := m.TTLUnit.Duration()
	if err != nil {
		return 0, err
	}
	if m.TTLValue <= 0 {
		return 0, fmt.Errorf("ttl value must be positive, got %d", m.TTLValue)
	}
	return time.Duration(m.TTLValue) * unit, nil
}

// Deadline is the instant the message stops being readable once bound:
// created_at plus the window.
func (m *Message) Deadline() (time.Time, error) {
	w, err := m.Window()
	if err != nil {
		return time.Time{}, err
	}
	return m.CreatedAt.Add(w), nil
}

func (m *Message) Bound() bool {
	return m.ActiveUntil != nil && m.BoundFingerprint != nil
}

// BoundTo reports whether fingerprint is the one the message is bound to.
func (m *Message) BoundTo(fingerprint string) bool {
	return m.BoundFingerprint != nil && *m.BoundFingerprint == fingerprint
}
