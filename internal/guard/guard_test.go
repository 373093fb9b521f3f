package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func newTestGuard(window time.Duration) *Guard {
	return New(NewMemoryStore(), window, nil)
}

func TestAcquireExactlyLimitGrants(t *testing.T) {
	// N concurrent attempts against a quota of K must yield exactly K
	// grants, regardless of interleaving.
	const (
		attempts = 100
		limit    = 20
	)
	g := newTestGuard(7 * 24 * time.Hour)
	ctx := context.Background()

	var granted, denied int64
	var eg errgroup.Group
	for i := 0; i < attempts; i++ {
		eg.Go(func() error {
			d, err := g.Acquire(ctx, nil, "invite_quota:u1", limit)
			if err != nil {
				return err
			}
			if d.Granted {
				atomic.AddInt64(&granted, 1)
			} else {
				atomic.AddInt64(&denied, 1)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if granted != limit {
		t.Fatalf("granted = %d, want exactly %d", granted, limit)
	}
	if denied != attempts-limit {
		t.Fatalf("denied = %d, want %d", denied, attempts-limit)
	}
	d, err := g.Peek(ctx, nil, "invite_quota:u1", limit)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if d.Count != limit || d.Remaining != 0 || d.Granted {
		t.Fatalf("final state %+v, want count=%d remaining=0 granted=false", d, limit)
	}
}

func TestCapacityThreeForTwo(t *testing.T) {
	// Event with max_attendees = 2, three concurrent RSVPs: exactly two
	// succeed and the final count is two.
	g := newTestGuard(0)
	ctx := context.Background()

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Acquire(ctx, nil, "event_capacity:e1", 2)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if d.Granted {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()
	if granted != 2 {
		t.Fatalf("granted = %d, want 2", granted)
	}
	d, _ := g.Peek(ctx, nil, "event_capacity:e1", 2)
	if d.Count != 2 {
		t.Fatalf("count = %d, want 2", d.Count)
	}
}

func TestWindowRotatesAtomically(t *testing.T) {
	g := newTestGuard(time.Hour)
	base := time.Now().UTC()
	g.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if d, err := g.Acquire(ctx, nil, "k", 3); err != nil || !d.Granted {
			t.Fatalf("acquire %d: d=%+v err=%v", i, d, err)
		}
	}
	if d, _ := g.Acquire(ctx, nil, "k", 3); d.Granted {
		t.Fatalf("expected denial at limit")
	}

	// Window expires: the rotation and the grant are one operation.
	g.now = func() time.Time { return base.Add(time.Hour) }
	d, err := g.Acquire(ctx, nil, "k", 3)
	if err != nil {
		t.Fatalf("acquire after rotation: %v", err)
	}
	if !d.Granted || d.Count != 1 || d.Remaining != 2 {
		t.Fatalf("after rotation d=%+v, want granted count=1 remaining=2", d)
	}
}

func TestDenialWritesNothing(t *testing.T) {
	g := newTestGuard(time.Hour)
	base := time.Now().UTC()
	g.now = func() time.Time { return base }
	ctx := context.Background()

	if _, err := g.Acquire(ctx, nil, "k", 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if d, _ := g.Acquire(ctx, nil, "k", 1); d.Granted {
		t.Fatalf("expected denial")
	}
	st, ok, err := g.store.Get(ctx, nil, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if st.Count != 1 || !st.WindowStart.Equal(base) {
		t.Fatalf("state mutated by denial: %+v", st)
	}
}

func TestReleaseFloorsAtZero(t *testing.T) {
	g := newTestGuard(0)
	ctx := context.Background()

	if _, err := g.Release(ctx, nil, "event_capacity:e2"); err != nil {
		t.Fatalf("release on empty counter: %v", err)
	}
	st, _, _ := g.store.Get(ctx, nil, "event_capacity:e2")
	if st.Count != 0 {
		t.Fatalf("count = %d, want 0", st.Count)
	}

	if _, err := g.Acquire(ctx, nil, "event_capacity:e2", -1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := g.Release(ctx, nil, "event_capacity:e2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	st, _, _ = g.store.Get(ctx, nil, "event_capacity:e2")
	if st.Count != 0 {
		t.Fatalf("count = %d, want 0 after acquire+release", st.Count)
	}
}

func TestSeedOnlyOnce(t *testing.T) {
	g := newTestGuard(0)
	ctx := context.Background()

	if err := g.Seed(ctx, nil, "event_capacity:e3", 5); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := g.Seed(ctx, nil, "event_capacity:e3", 99); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	d, err := g.Peek(ctx, nil, "event_capacity:e3", 10)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if d.Count != 5 {
		t.Fatalf("count = %d, want the first seed value 5", d.Count)
	}
}

func TestUnboundedLimit(t *testing.T) {
	g := newTestGuard(0)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		d, err := g.Acquire(ctx, nil, "event_capacity:open", -1)
		if err != nil || !d.Granted {
			t.Fatalf("acquire %d: d=%+v err=%v", i, d, err)
		}
		if d.Remaining != -1 {
			t.Fatalf("remaining = %d, want -1 for unbounded", d.Remaining)
		}
	}
}

func TestZeroLimitAlwaysDenies(t *testing.T) {
	g := newTestGuard(0)
	d, err := g.Acquire(context.Background(), nil, "k0", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if d.Granted {
		t.Fatalf("limit 0 must deny")
	}
}
