package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position. The numeric values are exported as the
// breaker_state gauge.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// tally counts outcomes observed while closed. Once it holds more than twice
// the minimum it is halved, so old outcomes fade instead of pinning the ratio.
type tally struct {
	ok, failed int
}

func (t *tally) add(success bool) {
	if success {
		t.ok++
	} else {
		t.failed++
	}
}

func (t tally) total() int { return t.ok + t.failed }

func (t tally) failureRatio() float64 {
	if t.total() == 0 {
		return 0
	}
	return float64(t.failed) / float64(t.total())
}

func (t *tally) decay(keep int) {
	if t.total() > 2*keep {
		t.ok = (t.ok + 1) / 2
		t.failed = (t.failed + 1) / 2
	}
}

// Breaker is a failure-ratio circuit breaker guarding the dealer backend.
//
// While half-open exactly one trial call is in flight. The trial slot is freed by
// Report, by Abandon when the caller gave up, or after openFor has passed
// without either, so a lost trial call can never wedge the breaker.
type Breaker struct {
	minRequests  int
	failureRatio float64
	openFor      time.Duration
	now          func() time.Time

	mu         sync.Mutex
	state      State
	outcomes   tally
	openedAt   time.Time
	trialSince time.Time
	target     string
	logger     zerolog.Logger
}

// NewBreaker constructs a breaker that opens once at least minRequests
// outcomes were observed and the failure ratio reaches failureRatio.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		minRequests:  max(minRequests, 1),
		failureRatio: min(failureRatio, 1),
		openFor:      openFor,
		now:          time.Now,
		target:       "default",
		logger:       zerolog.Nop(),
	}
}

// WithTarget sets the dependency name used for metric labels and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if target = strings.TrimSpace(target); target != "" {
		b.target = target
	}
	BreakerState.WithLabelValues(b.target).Set(float64(b.state))
	return b
}

// WithLogger sets the logger used when no request logger is on the context.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may proceed. Every admitted request must be
// followed by Report or Abandon.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == Closed {
		return true
	}
	if b.state == Open {
		if now.Sub(b.openedAt) < b.openFor {
			return false
		}
		b.moveTo(ctx, HalfOpen)
	}
	if !b.trialSince.IsZero() && now.Sub(b.trialSince) < b.openFor {
		return false
	}
	b.trialSince = now
	return true
}

// Report records the outcome of an admitted request.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
	case HalfOpen:
		if success {
			b.moveTo(ctx, Closed)
		} else {
			b.moveTo(ctx, Open)
		}
	case Closed:
		b.outcomes.add(success)
		if b.outcomes.total() < b.minRequests {
			return
		}
		if b.outcomes.failureRatio() >= b.failureRatio {
			b.moveTo(ctx, Open)
			return
		}
		b.outcomes.decay(b.minRequests)
	}
}

// Abandon returns an admission whose outcome is unknown, typically because
// the caller's context ended first. Nothing is counted; a half-open breaker
// admits the next trial call straight away.
func (b *Breaker) Abandon(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != HalfOpen || b.trialSince.IsZero() {
		return
	}
	b.trialSince = time.Time{}
	b.loggerFor(ctx).Debug().Str("target", b.target).Msg("breaker_trial_abandoned")
}

func (b *Breaker) moveTo(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.outcomes = tally{}
	b.trialSince = time.Time{}
	if next == Open {
		b.openedAt = b.now()
	}

	BreakerState.WithLabelValues(b.target).Set(float64(next))
	if prev == next {
		return
	}
	BreakerTransitions.WithLabelValues(b.target, prev.String(), next.String()).Inc()
	evt := b.loggerFor(ctx).Warn().Str("target", b.target).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &b.logger
}
