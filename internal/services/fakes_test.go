package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/types"
)

// fakeStore backs the repo interfaces in-memory. RunPairLocked and
// RunEventLocked serialize on real per-key mutexes so the concurrency
// properties under test exercise the same locking discipline as postgres
// advisory locks.
type fakeStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*types.User
	conns  map[uuid.UUID]*types.Connection
	msgs   []*types.Message
	events map[uuid.UUID]*types.Event
	rsvps  map[uuid.UUID]*types.EventRSVP

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[uuid.UUID]*types.User{},
		conns:  map[uuid.UUID]*types.Connection{},
		events: map[uuid.UUID]*types.Event{},
		rsvps:  map[uuid.UUID]*types.EventRSVP{},
		locks:  map[string]*sync.Mutex{},
	}
}

func (f *fakeStore) keyLock(key string) *sync.Mutex {
	f.lockMu.Lock()
	defer f.lockMu.Unlock()
	if m, ok := f.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	f.locks[key] = m
	return m
}

func (f *fakeStore) addUser(u *types.User) *types.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
		u.UpdatedAt = u.CreatedAt
	}
	u.IsActive = true
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addEvent(e *types.Event) *types.Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.IsActive = true
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.ID] = e
	return e
}

func (f *fakeStore) connection(id uuid.UUID) *types.Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conns[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

func (f *fakeStore) directional(initiatorID, targetID uuid.UUID) *types.Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if c.InitiatorID == initiatorID && c.TargetID == targetID {
			cp := *c
			return &cp
		}
	}
	return nil
}

// fakeConnectionRepo

type fakeConnectionRepo struct{ s *fakeStore }

func pairKey(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return "pair:" + lo + ":" + hi
}

func (r *fakeConnectionRepo) RunPairLocked(ctx context.Context, a, b uuid.UUID, fn func(tx *gorm.DB) error) error {
	m := r.s.keyLock(pairKey(a, b))
	m.Lock()
	defer m.Unlock()
	return fn(nil)
}

func (r *fakeConnectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Connection, error) {
	return r.s.connection(id), nil
}

func (r *fakeConnectionRepo) GetDirectional(ctx context.Context, tx *gorm.DB, initiatorID, targetID uuid.UUID) (*types.Connection, error) {
	return r.s.directional(initiatorID, targetID), nil
}

func (r *fakeConnectionRepo) Create(ctx context.Context, tx *gorm.DB, conn *types.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now().UTC()
		conn.UpdatedAt = conn.CreatedAt
	}
	cp := *conn
	r.s.conns[conn.ID] = &cp
	return nil
}

func (r *fakeConnectionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conns[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "status":
			c.Status = v.(string)
		case "invite_message":
			c.InviteMessage = v.(string)
		case "invited_at":
			t := v.(time.Time)
			c.InvitedAt = &t
		case "connected_at":
			t := v.(time.Time)
			c.ConnectedAt = &t
		case "updated_at":
			c.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (r *fakeConnectionRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string, offset, limit int) ([]*types.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Connection
	for _, c := range r.s.conns {
		if c.InitiatorID != userID && c.TargetID != userID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeConnectionRepo) ExcludedTargets(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, c := range r.s.conns {
		var id uuid.UUID
		switch {
		case c.InitiatorID == userID:
			id = c.TargetID
		case c.TargetID == userID && c.Status == types.ConnectionConnected:
			id = c.InitiatorID
		default:
			continue
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) IsConnected(ctx context.Context, tx *gorm.DB, a, b uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conns {
		if c.Status != types.ConnectionConnected {
			continue
		}
		if (c.InitiatorID == a && c.TargetID == b) || (c.InitiatorID == b && c.TargetID == a) {
			return true, nil
		}
	}
	return false, nil
}

// fakeUserRepo

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) ListCandidates(ctx context.Context, tx *gorm.DB, excludeIDs []uuid.UUID, scanLimit int) ([]*types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	excluded := map[uuid.UUID]bool{}
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []*types.User
	for _, u := range r.s.users {
		if !u.IsActive || u.IsBanned || excluded[u.ID] {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityTime().After(out[j].ActivityTime()) })
	if scanLimit > 0 && len(out) > scanLimit {
		out = out[:scanLimit]
	}
	return out, nil
}

// fakeMessageRepo

type fakeMessageRepo struct{ s *fakeStore }

func (r *fakeMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	cp := *msg
	r.s.msgs = append(r.s.msgs, &cp)
	return nil
}

func (r *fakeMessageRepo) ListByConnection(ctx context.Context, tx *gorm.DB, connectionID uuid.UUID, after *time.Time, limit int) ([]*types.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Message
	for _, m := range r.s.msgs {
		if m.ConnectionID != connectionID {
			continue
		}
		if after != nil && !m.CreatedAt.After(*after) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, tx *gorm.DB, connectionID, recipientID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, m := range r.s.msgs {
		if m.ConnectionID != connectionID || m.RecipientID != recipientID || m.IsRead {
			continue
		}
		m.IsRead = true
		at := now
		m.ReadAt = &at
		n++
	}
	return n, nil
}

// fakeEventRepo

type fakeEventRepo struct{ s *fakeStore }

func (r *fakeEventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

// fakeEventRSVPRepo

type fakeEventRSVPRepo struct{ s *fakeStore }

func (r *fakeEventRSVPRepo) RunEventLocked(ctx context.Context, eventID uuid.UUID, fn func(tx *gorm.DB) error) error {
	m := r.s.keyLock("event:" + eventID.String())
	m.Lock()
	defer m.Unlock()
	return fn(nil)
}

func (r *fakeEventRSVPRepo) Get(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*types.EventRSVP, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.rsvps {
		if v.UserID == userID && v.EventID == eventID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeEventRSVPRepo) Create(ctx context.Context, tx *gorm.DB, rsvp *types.EventRSVP) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rsvp.ID == uuid.Nil {
		rsvp.ID = uuid.New()
	}
	for _, v := range r.s.rsvps {
		if v.UserID == rsvp.UserID && v.EventID == rsvp.EventID {
			return nil
		}
	}
	if rsvp.RSVPAt.IsZero() {
		rsvp.RSVPAt = time.Now().UTC()
	}
	cp := *rsvp
	r.s.rsvps[rsvp.ID] = &cp
	return nil
}

func (r *fakeEventRSVPRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v, ok := r.s.rsvps[id]; ok {
		v.Status = status
		v.RSVPAt = time.Now().UTC()
	}
	return nil
}

func (r *fakeEventRSVPRepo) CountGoing(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, v := range r.s.rsvps {
		if v.EventID == eventID && v.Status == types.RSVPGoing {
			n++
		}
	}
	return n, nil
}
