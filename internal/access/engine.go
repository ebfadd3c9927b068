package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"burn.note/internal/crypto"
	"burn.note/internal/logging"
	"burn.note/internal/metrics"
	"burn.note/internal/models"
	"burn.note/internal/store"
)

// maxCreateAttempts bounds token regeneration after collisions.
const maxCreateAttempts = 5

// ErrUnavailable is returned when the store fails. Callers should show a
// generic failure and never the wrapped cause.
var ErrUnavailable = errors.New("message storage unavailable")

type Outcome int

const (
	// OutcomeExpired covers unknown, deleted and expired tokens; they are
	// deliberately indistinguishable.
	OutcomeExpired Outcome = iota
	OutcomeShown
	OutcomeDenied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeShown:
		return "shown"
	case OutcomeDenied:
		return "denied"
	default:
		return "expired"
	}
}

type ViewResult struct {
	Outcome     Outcome
	Text        string
	Token       string
	ActiveUntil time.Time
	// Remaining is the time left at the moment of the view.
	Remaining time.Duration
	// RemainingText is Remaining as a phrase, e.g. "59 minutes from now".
	RemainingText string
}

type Options struct {
	Delays       []int
	DefaultDelay int
	Retention    time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
	NewToken     func() (string, error)
}

// Engine derives reader fingerprints and drives the store. It holds no
// message state of its own.
type Engine struct {
	store        store.Store
	delays       []int
	defaultDelay int
	retention    time.Duration
	log          *zap.Logger
	now          func() time.Time
	newToken     func() (string, error)
}

func New(st store.Store, opts Options) *Engine {
	e := &Engine{
		store:        st,
		delays:       opts.Delays,
		defaultDelay: opts.DefaultDelay,
		retention:    opts.Retention,
		log:          opts.Logger,
		now:          opts.Now,
		newToken:     opts.NewToken,
	}
	if len(e.delays) == 0 {
		e.delays = []int{15, 30, 60, 120, 1440}
	}
	if e.defaultDelay == 0 {
		e.defaultDelay = e.delays[0]
	}
	if e.retention == 0 {
		e.retention = 30 * 24 * time.Hour
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newToken == nil {
		e.newToken = crypto.GenerateToken
	}
	return e
}

// FingerprintOf derives the reader fingerprint for identity on token.
func (e *Engine) FingerprintOf(identity, token string) string {
	return crypto.Fingerprint(identity, token)
}

// Create stores text under a fresh token with the window picked by selector.
func (e *Engine) Create(ctx context.Context, text, selector string) (string, error) {
	minutes := e.ResolveDelay(selector)
	createdAt := e.clock()

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		token, err := e.newToken()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		msg := &models.Message{
			Text:      text,
			Token:     token,
			TTLUnit:   models.TTLMinutes,
			TTLValue:  minutes,
			CreatedAt: createdAt,
		}

		err = e.store.Create(ctx, msg)
		if errors.Is(err, store.ErrConflict) {
			metrics.CreateConflicts.Inc()
			e.log.Warn("token collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			e.log.Error("create message failed", zap.Error(err))
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		metrics.MessagesCreated.Inc()
		e.log.Debug("message created", logging.Redact(token), zap.Int("ttl_minutes", minutes))
		return token, nil
	}

	e.log.Error("token collisions exhausted retries", zap.Int("attempts", maxCreateAttempts))
	return "", fmt.Errorf("%w: %w after %d attempts", ErrUnavailable, store.ErrConflict, maxCreateAttempts)
}

// View reveals the message behind token to the reader at identity, binding
// the message to that reader if nobody has opened it yet.
func (e *Engine) View(ctx context.Context, token, identity string) (ViewResult, error) {
	if !crypto.ValidToken(token) {
		metrics.MessageViews.WithLabelValues(OutcomeExpired.String()).Inc()
		return ViewResult{Outcome: OutcomeExpired}, nil
	}

	now := e.clock()
	msg, err := e.store.RevealOrBind(ctx, token, e.FingerprintOf(identity, token), store.NewHorizon(now, e.retention))
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.MessageViews.WithLabelValues(OutcomeExpired.String()).Inc()
		return ViewResult{Outcome: OutcomeExpired}, nil
	case errors.Is(err, store.ErrAccessDenied):
		metrics.MessageViews.WithLabelValues(OutcomeDenied.String()).Inc()
		e.log.Info("view denied", logging.Redact(token))
		return ViewResult{Outcome: OutcomeDenied}, nil
	case err != nil:
		e.log.Error("reveal message failed", logging.Redact(token), zap.Error(err))
		return ViewResult{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	until := msg.ActiveUntil.UTC()
	metrics.MessageViews.WithLabelValues(OutcomeShown.String()).Inc()
	return ViewResult{
		Outcome:       OutcomeShown,
		Text:          msg.Text,
		Token:         msg.Token,
		ActiveUntil:   until,
		Remaining:     until.Sub(now),
		RemainingText: humanize.RelTime(until, now, "ago", "from now"),
	}, nil
}

// Delete removes the message if identity is the reader it is bound to.
func (e *Engine) Delete(ctx context.Context, token, identity string) (bool, error) {
	if !crypto.ValidToken(token) {
		return false, nil
	}

	ok, err := e.store.Destroy(ctx, token, e.FingerprintOf(identity, token))
	if err != nil {
		e.log.Error("destroy message failed", logging.Redact(token), zap.Error(err))
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if ok {
		metrics.MessagesDestroyed.Inc()
	}
	return ok, nil
}

// Purge removes every expired or stale message.
func (e *Engine) Purge(ctx context.Context) (int64, error) {
	n, err := e.store.Purge(ctx, store.NewHorizon(e.clock(), e.retention))
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	metrics.MessagesPurged.Add(float64(n))
	return n, nil
}

// clock returns the current time at the millisecond precision the stores keep.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}
