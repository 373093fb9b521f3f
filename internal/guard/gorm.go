package guard

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foundernet/foundernet-backend/internal/db"
	"github.com/foundernet/foundernet-backend/internal/types"
)

// GormStore keeps counters in the guard_counter table. Atomicity comes from
// the persistent store, not in-process locks, so the limits hold across
// service replicas: every Update inserts the row if absent, locks it with
// SELECT ... FOR UPDATE, runs fn, and persists inside one transaction. When
// tx is non-nil the row lock joins the caller's transaction, which is how an
// invite couples quota consumption to the ledger transition — a rolled-back
// invite consumes nothing.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb}
}

func (s *GormStore) Update(ctx context.Context, tx *gorm.DB, key string, fn func(st *State) (bool, error)) (State, error) {
	var out State
	run := func(txx *gorm.DB) error {
		now := time.Now().UTC()
		seed := &types.GuardCounter{Key: key, Count: 0, WindowStart: now, UpdatedAt: now}
		if err := txx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
			Create(seed).Error; err != nil {
			return err
		}
		var row types.GuardCounter
		if err := txx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", key).
			First(&row).Error; err != nil {
			return err
		}
		st := State{Count: row.Count, WindowStart: row.WindowStart}
		dirty, err := fn(&st)
		if err != nil {
			return err
		}
		if dirty {
			if err := txx.WithContext(ctx).
				Model(&types.GuardCounter{}).
				Where("key = ?", key).
				Updates(map[string]interface{}{
					"count":        st.Count,
					"window_start": st.WindowStart,
					"updated_at":   time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
		}
		out = st
		return nil
	}
	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return State{}, db.Classify(err)
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, tx *gorm.DB, key string) (State, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	var row types.GuardCounter
	err := transaction.WithContext(ctx).
		Where("key = ?", key).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return State{}, false, db.Classify(err)
	}
	if row.Key == "" {
		return State{}, false, nil
	}
	return State{Count: row.Count, WindowStart: row.WindowStart}, true, nil
}

func (s *GormStore) Seed(ctx context.Context, tx *gorm.DB, key string, count int, windowStart time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	row := &types.GuardCounter{Key: key, Count: count, WindowStart: windowStart, UpdatedAt: time.Now().UTC()}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(row).Error
	return db.Classify(err)
}
