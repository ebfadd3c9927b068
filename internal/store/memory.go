package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"burn.note/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps messages in process memory. The bind is atomic only within
// one process; use it for development and tests.
type MemoryStore struct {
	messages map[string]*models.Message
	mu       sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*models.Message),
	}
}

func (s *MemoryStore) Create(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := msg.Window(); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.Token]; ok {
		return ErrConflict
	}

	stored := *msg
	stored.ID = uuid.NewString()
	stored.ActiveUntil = nil
	stored.BoundFingerprint = nil
	s.messages[msg.Token] = &stored
	msg.ID = stored.ID
	return nil
}

func (s *MemoryStore) RevealOrBind(ctx context.Context, token, fingerprint string, h Horizon) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[token]
	if !ok || h.Expired(msg) {
		return nil, ErrNotFound
	}

	if !msg.Bound() {
		deadline, err := msg.Deadline()
		if err != nil {
			return nil, err
		}
		if !deadline.After(h.Now) {
			return nil, ErrNotFound
		}
		fp := fingerprint
		msg.ActiveUntil = &deadline
		msg.BoundFingerprint = &fp
		return copyMessage(msg), nil
	}

	if !msg.BoundTo(fingerprint) {
		return nil, ErrAccessDenied
	}
	return copyMessage(msg), nil
}

func (s *MemoryStore) Destroy(ctx context.Context, token, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[token]
	if !ok || !msg.BoundTo(fingerprint) {
		return false, nil
	}
	delete(s.messages, token)
	return true, nil
}

func (s *MemoryStore) Purge(ctx context.Context, h Horizon) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for token, msg := range s.messages {
		if h.Expired(msg) {
			delete(s.messages, token)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make(map[string]*models.Message)
	return nil
}

func copyMessage(m *models.Message) *models.Message {
	out := *m
	if m.ActiveUntil != nil {
		t := *m.ActiveUntil
		out.ActiveUntil = &t
	}
	if m.BoundFingerprint != nil {
		fp := *m.BoundFingerprint
		out.BoundFingerprint = &fp
	}
	return &out
}
