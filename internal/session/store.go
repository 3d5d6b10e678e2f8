// Package session holds the viewer state of each connected client.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/lexview/internal/fetch"
	"github.com/dgallion1/lexview/internal/viewer"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lexview_sessions_active",
		Help: "Viewer sessions currently held in memory",
	})

	expiredSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexview_sessions_expired_total",
		Help: "Viewer sessions evicted after their TTL",
	})
)

// Event is pushed to subscribers of a session.
type Event struct {
	Type      string           `json:"type"`
	MatchID   string           `json:"match_id,omitempty"`
	LoadState viewer.LoadState `json:"load_state,omitempty"`
}

const (
	// EventFocus names the newly emphasized match; an empty id clears it.
	EventFocus = "focus"
	// EventLoad reports that raw markup finished loading or failed.
	EventLoad = "load"
)

// Session is one client's content view plus the subscribers to its events.
type Session struct {
	ID        string
	CreatedAt time.Time

	view *viewer.Controller

	mu        sync.Mutex
	updatedAt time.Time
	subs      map[chan Event]struct{}
	closed    bool
}

// View returns the session's content view controller.
func (s *Session) View() *viewer.Controller { return s.view }

// Touch records activity, postponing expiry.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// UpdatedAt returns the time of the last activity.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Subscribe returns a channel of session events and a function that ends the
// subscription. The channel is closed when the session ends. Slow
// subscribers miss events rather than block the view.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) close() {
	s.view.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

// Options configure the controllers created by a Store.
type Options struct {
	TTL      time.Duration
	Fetcher  fetch.Fetcher
	Log      *slog.Logger
	FontSize int
	OnFetch  func(ref string, err error, elapsed time.Duration)
}

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     Options
	log      *slog.Logger
}

func NewStore(opts Options) *Store {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{
		sessions: make(map[string]*Session),
		opts:     opts,
		log:      log,
	}
}

// Create starts a session with an idle view.
func (st *Store) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		updatedAt: now,
		subs:      make(map[chan Event]struct{}),
	}
	s.view = viewer.New(viewer.Options{
		Fetcher:  st.opts.Fetcher,
		Log:      st.log.With("session_id", s.ID),
		FontSize: st.opts.FontSize,
		OnFetch:  st.opts.OnFetch,
		OnFocus: func(matchID string) {
			s.publish(Event{Type: EventFocus, MatchID: matchID})
		},
		OnLoad: func(state viewer.LoadState) {
			s.publish(Event{Type: EventLoad, LoadState: state})
		},
	})

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	activeSessions.Inc()
	return s
}

// Get returns the session with id, or nil.
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[id]
}

// Delete ends a session. It reports whether the session existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return false
	}
	s.close()
	activeSessions.Dec()
	return true
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (st *Store) Cleanup() int {
	now := time.Now()
	var expired []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		if now.Sub(s.UpdatedAt()) > st.opts.TTL {
			delete(st.sessions, id)
			expired = append(expired, s)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.close()
		activeSessions.Dec()
		expiredSessions.Inc()
	}
	if len(expired) > 0 {
		st.log.Info("expired sessions removed", "count", len(expired))
	}
	return len(expired)
}

// Run evicts expired sessions every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Cleanup()
		}
	}
}

// CloseAll ends every session and waits for their fetches to finish.
func (st *Store) CloseAll() {
	st.mu.Lock()
	all := make([]*Session, 0, len(st.sessions))
	for id, s := range st.sessions {
		all = append(all, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	for _, s := range all {
		s.close()
		activeSessions.Dec()
		s.view.Wait()
	}
}
