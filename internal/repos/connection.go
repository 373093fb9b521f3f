package repos

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/db"
	"github.com/foundernet/foundernet-backend/internal/logger"
	"github.com/foundernet/foundernet-backend/internal/types"
)

type ConnectionRepo interface {
	// RunPairLocked runs fn inside one transaction holding an advisory lock
	// on the canonicalized unordered pair, serializing both directions of
	// the edge. All pair mutations go through it.
	RunPairLocked(ctx context.Context, a, b uuid.UUID, fn func(tx *gorm.DB) error) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Connection, error)
	GetDirectional(ctx context.Context, tx *gorm.DB, initiatorID, targetID uuid.UUID) (*types.Connection, error)
	Create(ctx context.Context, tx *gorm.DB, conn *types.Connection) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string, offset, limit int) ([]*types.Connection, error)
	// ExcludedTargets returns every user the given user must not rediscover:
	// anyone they already created an edge toward, plus anyone connected to
	// them in the reverse direction.
	ExcludedTargets(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	// IsConnected is the sole authority behind the message-log gate.
	IsConnected(ctx context.Context, tx *gorm.DB, a, b uuid.UUID) (bool, error)
}

type connectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConnectionRepo(gdb *gorm.DB, baseLog *logger.Logger) ConnectionRepo {
	return &connectionRepo{db: gdb, log: baseLog.With("repo", "ConnectionRepo")}
}

// pairLockID canonicalizes an unordered pair into the advisory-lock keyspace.
// Both directions of the same pair hash identically, so opposite-direction
// invites serialize on the same lock.
func pairLockID(a, b uuid.UUID) int64 {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(lo))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(hi))
	return int64(h.Sum64())
}

func (r *connectionRepo) RunPairLocked(ctx context.Context, a, b uuid.UUID, fn func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", pairLockID(a, b)).Error; err != nil {
			return err
		}
		return fn(tx)
	})
	return db.Classify(err)
}

func (r *connectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Connection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Connection
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
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

func (r *connectionRepo) GetDirectional(ctx context.Context, tx *gorm.DB, initiatorID, targetID uuid.UUID) (*types.Connection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if initiatorID == uuid.Nil || targetID == uuid.Nil {
		return nil, nil
	}
	var row types.Connection
	err := transaction.WithContext(ctx).
		Where("initiator_id = ? AND target_id = ?", initiatorID, targetID).
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

func (r *connectionRepo) Create(ctx context.Context, tx *gorm.DB, conn *types.Connection) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	return db.Classify(transaction.WithContext(ctx).Create(conn).Error)
}

func (r *connectionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return db.Classify(transaction.WithContext(ctx).
		Model(&types.Connection{}).
		Where("id = ?", id).
		Updates(updates).Error)
}

func (r *connectionRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string, offset, limit int) ([]*types.Connection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Connection
	if userID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(ctx).
		Where("initiator_id = ? OR target_id = ?", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	return out, nil
}

func (r *connectionRepo) ExcludedTargets(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if userID == uuid.Nil {
		return ids, nil
	}
	err := transaction.WithContext(ctx).Raw(`
		SELECT target_id AS id FROM connection WHERE initiator_id = ?
		UNION
		SELECT initiator_id AS id FROM connection WHERE target_id = ? AND status = ?
	`, userID, userID, types.ConnectionConnected).Scan(&ids).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	return ids, nil
}

func (r *connectionRepo) IsConnected(ctx context.Context, tx *gorm.DB, a, b uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if a == uuid.Nil || b == uuid.Nil {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Connection{}).
		Where("status = ?", types.ConnectionConnected).
		Where("(initiator_id = ? AND target_id = ?) OR (initiator_id = ? AND target_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, db.Classify(err)
	}
	return count > 0, nil
}
