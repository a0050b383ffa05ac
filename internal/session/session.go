// Package session owns the per-user dataset slots. Each interactive session
// holds at most one dataset per upload slot; uploads replace the slot's
// dataset wholesale through an atomic pointer swap, so in-flight reads keep
// the dataset they started with and never observe a partial update.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nelhattab/electratrack/internal/schema"
	"github.com/nelhattab/electratrack/internal/tabular"
)

// Persister is the optional write-through backing for slots, letting a
// session survive a server restart. Implemented by store.Store.
type Persister interface {
	SaveDataset(ctx context.Context, sessionID, slot string, ds *tabular.Dataset) error
	GetDataset(ctx context.Context, sessionID, slot string) (*tabular.Dataset, error)
}

// Session is one user's set of slots.
type Session struct {
	ID    string
	slots map[string]*atomic.Pointer[tabular.Dataset]
}

func newSession(id string) *Session {
	s := &Session{ID: id, slots: make(map[string]*atomic.Pointer[tabular.Dataset])}
	for _, slot := range schema.Slots() {
		s.slots[slot] = &atomic.Pointer[tabular.Dataset]{}
	}
	return s
}

// Dataset returns the slot's current dataset, or ok=false when nothing has
// been uploaded yet.
func (s *Session) Dataset(slot string) (*tabular.Dataset, bool) {
	p, ok := s.slots[slot]
	if !ok {
		return nil, false
	}
	ds := p.Load()
	return ds, ds != nil
}

// replace swaps the slot's dataset.
func (s *Session) replace(slot string, ds *tabular.Dataset) error {
	p, ok := s.slots[slot]
	if !ok {
		return eris.Errorf("session: unknown slot %q", slot)
	}
	p.Store(ds)
	return nil
}

type entry struct {
	sess     *Session
	lastSeen time.Time
}

// Manager tracks live sessions by ID with idle expiry.
type Manager struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]*entry
	persist  Persister
}

// NewManager creates a manager with the given idle TTL. persist may be nil
// for memory-only operation.
func NewManager(ttl time.Duration, persist Persister) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		ttl:      ttl,
		sessions: make(map[string]*entry),
		persist:  persist,
	}
}

// Get returns the session for the given ID, creating it on first use. An
// empty ID mints a new session. Freshly created sessions are hydrated from
// the persister, when one is configured, before they become visible: a
// session must never be handed out half-hydrated, or an upload racing the
// first request could be overwritten by stale persisted data.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = time.Now()
		m.mu.Unlock()
		return e.sess
	}
	m.mu.Unlock()

	sess := newSession(id)
	if m.persist != nil {
		m.hydrate(ctx, sess)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have published the same ID while we hydrated.
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = time.Now()
		return e.sess
	}
	m.sessions[id] = &entry{sess: sess, lastSeen: time.Now()}
	return sess
}

// hydrate fills an unpublished session's slots from the persister. Runs
// outside the manager lock; the session is not visible to anyone else yet.
func (m *Manager) hydrate(ctx context.Context, sess *Session) {
	for _, slot := range schema.Slots() {
		ds, err := m.persist.GetDataset(ctx, sess.ID, slot)
		if err != nil {
			zap.L().Warn("session: hydrate slot",
				zap.String("session", sess.ID),
				zap.String("slot", slot),
				zap.Error(err),
			)
			continue
		}
		if ds != nil {
			_ = sess.replace(slot, ds)
		}
	}
}

// Replace swaps the slot's dataset and, when a persister is configured,
// writes it through. A persistence failure is logged, not surfaced: the
// in-memory session stays authoritative for the rest of the interaction.
func (m *Manager) Replace(ctx context.Context, sess *Session, slot string, ds *tabular.Dataset) error {
	if err := sess.replace(slot, ds); err != nil {
		return err
	}
	if m.persist != nil {
		if err := m.persist.SaveDataset(ctx, sess.ID, slot, ds); err != nil {
			zap.L().Warn("session: persist slot",
				zap.String("session", sess.ID),
				zap.String("slot", slot),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until the context is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				zap.L().Info("session: swept idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
