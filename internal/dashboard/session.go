package dashboard

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/dealer-insights/internal/common"
	"github.com/noah-isme/dealer-insights/internal/obs"
	"github.com/noah-isme/dealer-insights/internal/performance"
)

// SessionHeader carries the dashboard session id in both directions.
const SessionHeader = "X-Session-ID"

// DefaultSessionsPerDealer bounds the live sessions one dealer can hold.
const DefaultSessionsPerDealer = 16

type session struct {
	dealer   string
	views    map[performance.Scope]*performance.View
	lastSeen time.Time
}

func (s *session) close() {
	for _, view := range s.views {
		view.Close()
	}
}

// Sessions holds one performance View per scope for every open dashboard.
// Sessions are partitioned by dealer so a leaked session id never exposes
// another dealer's loaded report. Each dealer holds at most perDealer
// sessions; opening one more evicts that dealer's least recently seen.
type Sessions struct {
	fetcher   performance.Fetcher
	ttl       time.Duration
	perDealer int
	now       func() time.Time

	mu       sync.Mutex
	byID     map[string]*session
	byDealer map[string]int
}

// NewSessions constructs a session store whose views fetch through fetcher.
func NewSessions(fetcher performance.Fetcher, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		fetcher:   fetcher,
		ttl:       ttl,
		perDealer: DefaultSessionsPerDealer,
		now:       time.Now,
		byID:      make(map[string]*session),
		byDealer:  make(map[string]int),
	}
}

// WithLimit caps live sessions per dealer. Non-positive values keep the default.
func (s *Sessions) WithLimit(perDealer int) *Sessions {
	if perDealer > 0 {
		s.perDealer = perDealer
	}
	return s
}

// View returns the view for scope in the session, creating it on first use.
func (s *Sessions) View(dealerID, sessionID string, scope performance.Scope) *performance.View {
	key := dealerID + "/" + sessionID
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[key]
	if !ok {
		if s.byDealer[dealerID] >= s.perDealer {
			s.evictOldest(dealerID)
		}
		sess = &session{dealer: dealerID, views: make(map[performance.Scope]*performance.View, 2)}
		s.byID[key] = sess
		s.byDealer[dealerID]++
	}
	sess.lastSeen = s.now()
	view, ok := sess.views[scope]
	if !ok {
		view = performance.NewView(s.fetcher)
		sess.views[scope] = view
	}
	return view
}

// evictOldest drops the least recently seen session of dealerID. Callers hold mu.
func (s *Sessions) evictOldest(dealerID string) {
	var (
		oldestKey string
		oldest    *session
	)
	for key, sess := range s.byID {
		if sess.dealer != dealerID {
			continue
		}
		if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
			oldestKey, oldest = key, sess
		}
	}
	if oldest != nil {
		s.remove(oldestKey, oldest)
	}
}

func (s *Sessions) remove(key string, sess *session) {
	sess.close()
	delete(s.byID, key)
	if s.byDealer[sess.dealer]--; s.byDealer[sess.dealer] <= 0 {
		delete(s.byDealer, sess.dealer)
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Sweep drops sessions idle for longer than the ttl and cancels their fetches.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, sess := range s.byID {
		if sess.lastSeen.After(cutoff) {
			continue
		}
		s.remove(key, sess)
		removed++
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug().Int("expired", n).Int("live", s.Len()).Msg("sessions_swept")
			}
		}
	}
}

// Middleware issues a session id when the request carries none and echoes it back.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(SessionHeader, id)
		ctx := common.WithSessionID(r.Context(), id)
		obs.Annotate(ctx, "session_id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
