// Package guard implements the bounded-counter primitive behind the invite
// quota and the event capacity cap: allow an action only if a counter scoped
// to a key has not exceeded a limit, where the check and the increment are a
// single atomic unit. A read-count/decide/write-count sequence split across
// two steps would let N concurrent requests each observe count = max-1 and
// collectively overbook; the Store contract exists to make that impossible.
package guard

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/logger"
)

// State is the persisted counter for one key.
type State struct {
	Count       int
	WindowStart time.Time
}

// Decision is the outcome of an Acquire or Peek. A denial is a normal,
// expected outcome, not an error. Remaining is -1 for unbounded limits.
type Decision struct {
	Granted   bool `json:"granted"`
	Count     int  `json:"count"`
	Remaining int  `json:"remaining"`
}

// Store applies fn to the counter state for one key as a single atomic unit.
// fn returns whether the mutated state must be persisted; a denial writes
// nothing. Implementations joining an outer transaction receive it via tx.
type Store interface {
	Update(ctx context.Context, tx *gorm.DB, key string, fn func(s *State) (dirty bool, err error)) (State, error)
	Get(ctx context.Context, tx *gorm.DB, key string) (State, bool, error)
	Seed(ctx context.Context, tx *gorm.DB, key string, count int, windowStart time.Time) error
}

// Guard evaluates bounded-counter decisions over a Store. window > 0 gives a
// rolling window that is rotated atomically inside the same operation that
// evaluates the request; window == 0 is an identity window that never
// rotates (event capacity).
type Guard struct {
	store  Store
	window time.Duration
	log    *logger.Logger
	now    func() time.Time
}

func New(store Store, window time.Duration, baseLog *logger.Logger) *Guard {
	var log *logger.Logger
	if baseLog != nil {
		log = baseLog.With("component", "guard")
	}
	return &Guard{store: store, window: window, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Acquire consumes one unit for key iff the counter is below limit, rotating
// an expired window first. limit < 0 means unbounded; limit == 0 always
// denies. The rotation, the check and the increment happen under the same
// per-key lock, so N concurrent calls against a limit of K yield exactly K
// grants.
func (g *Guard) Acquire(ctx context.Context, tx *gorm.DB, key string, limit int) (Decision, error) {
	now := g.now()
	var d Decision
	_, err := g.store.Update(ctx, tx, key, func(s *State) (bool, error) {
		g.rotate(s, now)
		if limit >= 0 && s.Count >= limit {
			d = Decision{Granted: false, Count: s.Count, Remaining: remaining(limit, s.Count)}
			return false, nil
		}
		s.Count++
		d = Decision{Granted: true, Count: s.Count, Remaining: remaining(limit, s.Count)}
		return true, nil
	})
	if err != nil {
		return Decision{}, err
	}
	if g.log != nil && !d.Granted {
		g.log.Debug("guard denied", "key", key, "count", d.Count, "limit", limit)
	}
	return d, nil
}

// Release returns one unit for key, floored at zero. Used when an attendee
// moves out of the counted state.
func (g *Guard) Release(ctx context.Context, tx *gorm.DB, key string) (State, error) {
	return g.store.Update(ctx, tx, key, func(s *State) (bool, error) {
		if s.Count <= 0 {
			return false, nil
		}
		s.Count--
		return true, nil
	})
}

// Seed creates the counter for key with an initial count if it does not
// exist yet. Lets capacity counters start from pre-existing attendance rows.
func (g *Guard) Seed(ctx context.Context, tx *gorm.DB, key string, count int) error {
	return g.store.Seed(ctx, tx, key, count, g.now())
}

// Peek reports the current decision without consuming anything. Granted
// means a subsequent Acquire would succeed.
func (g *Guard) Peek(ctx context.Context, tx *gorm.DB, key string, limit int) (Decision, error) {
	st, ok, err := g.store.Get(ctx, tx, key)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		g.rotate(&st, g.now())
	}
	granted := limit < 0 || st.Count < limit
	return Decision{Granted: granted, Count: st.Count, Remaining: remaining(limit, st.Count)}, nil
}

func (g *Guard) rotate(s *State, now time.Time) {
	if g.window > 0 && now.Sub(s.WindowStart) >= g.window {
		s.Count = 0
		s.WindowStart = now
	}
}

func remaining(limit, count int) int {
	if limit < 0 {
		return -1
	}
	r := limit - count
	if r < 0 {
		r = 0
	}
	return r
}
