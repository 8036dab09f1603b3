package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/quota"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"

	"github.com/patrickmn/go-cache"
)

const defaultIdleTTL = 1 * time.Hour

// entry pairs a session with the lock that serializes everything done to it.
type entry struct {
	mu      sync.Mutex
	session *store.Session

	// readable without mu so status queries do not wait behind an inference call
	processing atomic.Bool

	// callers inside or waiting on WithLock; guarded by SessionRepository.createMu
	refs int
}

// SessionRepository maps user identity to session state. Sessions are created
// on first touch and torn down by the cache janitor after the idle TTL.
type SessionRepository struct {
	cache *cache.Cache
	guard quota.Guard

	// guards get-or-create so two first events cannot create two entries,
	// and the refs/held bookkeeping below
	createMu sync.Mutex
	// entries in use, kept reachable even if the janitor drops them from cache
	held map[string]*entry
}

func NewSessionRepository(idleTTL time.Duration, guard quota.Guard) *SessionRepository {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	cleanup := 10 * time.Minute
	if idleTTL < cleanup {
		cleanup = idleTTL
	}

	r := &SessionRepository{
		cache: cache.New(idleTTL, cleanup),
		guard: guard,
		held:  make(map[string]*entry),
	}
	r.cache.OnEvicted(r.onEvicted)
	return r
}

// WithLock runs fn while holding the user's session lock. The lock may be held
// across network calls; other users are never blocked by it.
func (r *SessionRepository) WithLock(userID string, fn func(tx *Tx) error) error {
	e := r.acquire(userID)
	defer r.release(userID, e)

	e.mu.Lock()
	defer e.mu.Unlock()

	return fn(&Tx{entry: e, session: e.session, guard: r.guard})
}

// Processing reports whether the user's session is currently inside an ask.
// It never creates a session and never waits on the session lock.
func (r *SessionRepository) Processing(userID string) bool {
	r.createMu.Lock()
	e := r.lookup(userID)
	r.createMu.Unlock()

	if e == nil {
		return false
	}
	return e.processing.Load()
}

// GetOrCreate returns a snapshot of the user's session, creating it if needed.
func (r *SessionRepository) GetOrCreate(userID string) store.Session {
	var snap store.Session
	_ = r.WithLock(userID, func(tx *Tx) error {
		snap = tx.Snapshot()
		return nil
	})
	return snap
}

func (r *SessionRepository) AppendText(userID, text string) {
	_ = r.WithLock(userID, func(tx *Tx) error {
		tx.AppendText(text)
		return nil
	})
}

// AppendAsset adds the asset unless the quota guard rejects it; a rejected
// asset leaves the session exactly as it was.
func (r *SessionRepository) AppendAsset(userID string, asset store.DocumentAsset) error {
	return r.WithLock(userID, func(tx *Tx) error {
		return tx.AppendAsset(asset)
	})
}

// Reset clears the session and returns what was dropped.
func (r *SessionRepository) Reset(userID string) store.Batch {
	var dropped store.Batch
	_ = r.WithLock(userID, func(tx *Tx) error {
		dropped = tx.Reset()
		return nil
	})
	return dropped
}

// Drain atomically returns the accumulated input and resets the session.
func (r *SessionRepository) Drain(userID string) store.Batch {
	var batch store.Batch
	_ = r.WithLock(userID, func(tx *Tx) error {
		batch = tx.Drain()
		return nil
	})
	return batch
}

// Len reports the number of live sessions.
func (r *SessionRepository) Len() int {
	return r.cache.ItemCount()
}

func (r *SessionRepository) acquire(userID string) *entry {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	e := r.lookup(userID)
	if e == nil {
		e = &entry{session: store.NewSession(userID)}
	}
	e.refs++
	r.held[userID] = e

	// every access restarts the idle clock
	r.cache.Set(userID, e, cache.DefaultExpiration)
	return e
}

func (r *SessionRepository) release(userID string, e *entry) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	e.refs--
	if e.refs == 0 && r.held[userID] == e {
		delete(r.held, userID)
	}
	// the idle clock starts when the last holder leaves
	r.cache.Set(userID, e, cache.DefaultExpiration)
}

// lookup must be called with createMu held.
func (r *SessionRepository) lookup(userID string) *entry {
	if x, found := r.cache.Get(userID); found {
		return x.(*entry)
	}
	return r.held[userID]
}

// onEvicted puts back an entry the janitor expired while it is still in use,
// so a second lock for the same user can never be created.
func (r *SessionRepository) onEvicted(userID string, x interface{}) {
	e := x.(*entry)

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if e.refs > 0 {
		r.cache.Set(userID, e, cache.DefaultExpiration)
	}
}

// Tx is a view of one session valid only inside WithLock.
type Tx struct {
	entry   *entry
	session *store.Session
	guard   quota.Guard
}

func (tx *Tx) Snapshot() store.Session {
	return tx.session.Snapshot()
}

func (tx *Tx) AppendText(text string) {
	tx.session.AddText(text)
}

func (tx *Tx) AppendAsset(asset store.DocumentAsset) error {
	if err := tx.guard.Check(tx.session.CumulativeBytes, asset.Size()); err != nil {
		return err
	}
	tx.session.AddAsset(asset)
	return nil
}

func (tx *Tx) Reset() store.Batch {
	dropped := tx.session.Batch()
	tx.session.Clear()
	return dropped
}

func (tx *Tx) Drain() store.Batch {
	batch := tx.session.Batch()
	tx.session.Clear()
	return batch
}

func (tx *Tx) SetState(state store.State) {
	tx.session.State = state
	tx.entry.processing.Store(state == store.StateProcessing)
}

// Remaining is the byte budget left before the quota rejects a file.
func (tx *Tx) Remaining() int64 {
	return tx.guard.Remaining(tx.session.CumulativeBytes)
}
