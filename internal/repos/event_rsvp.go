package repos

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foundernet/foundernet-backend/internal/db"
	"github.com/foundernet/foundernet-backend/internal/logger"
	"github.com/foundernet/foundernet-backend/internal/types"
)

type EventRSVPRepo interface {
	// RunEventLocked runs fn inside one transaction holding an advisory
	// lock on the event, serializing capacity changes for it.
	RunEventLocked(ctx context.Context, eventID uuid.UUID, fn func(tx *gorm.DB) error) error
	Get(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*types.EventRSVP, error)
	Create(ctx context.Context, tx *gorm.DB, rsvp *types.EventRSVP) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	CountGoing(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error)
}

type eventRSVPRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRSVPRepo(gdb *gorm.DB, baseLog *logger.Logger) EventRSVPRepo {
	return &eventRSVPRepo{db: gdb, log: baseLog.With("repo", "EventRSVPRepo")}
}

func eventLockID(eventID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("event:"))
	_, _ = h.Write([]byte(eventID.String()))
	return int64(h.Sum64())
}

func (r *eventRSVPRepo) RunEventLocked(ctx context.Context, eventID uuid.UUID, fn func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", eventLockID(eventID)).Error; err != nil {
			return err
		}
		return fn(tx)
	})
	return db.Classify(err)
}

func (r *eventRSVPRepo) Get(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*types.EventRSVP, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || eventID == uuid.Nil {
		return nil, nil
	}
	var row types.EventRSVP
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *eventRSVPRepo) Create(ctx context.Context, tx *gorm.DB, rsvp *types.EventRSVP) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if rsvp.ID == uuid.Nil {
		rsvp.ID = uuid.New()
	}
	return db.Classify(transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(rsvp).Error)
}

func (r *eventRSVPRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return db.Classify(transaction.WithContext(ctx).
		Model(&types.EventRSVP{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  status,
			"rsvp_at": time.Now().UTC(),
		}).Error)
}

func (r *eventRSVPRepo) CountGoing(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.EventRSVP{}).
		Where("event_id = ? AND status = ?", eventID, types.RSVPGoing).
		Count(&count).Error
	if err != nil {
		return 0, db.Classify(err)
	}
	return count, nil
}
