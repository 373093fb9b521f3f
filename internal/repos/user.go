package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/db"
	"github.com/foundernet/foundernet-backend/internal/logger"
	"github.com/foundernet/foundernet-backend/internal/types"
)

type UserRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error)
	// ListCandidates returns active, non-banned users excluding the given
	// ids, newest activity first. scanLimit bounds how many rows discovery
	// will score in one pass.
	ListCandidates(ctx context.Context, tx *gorm.DB, excludeIDs []uuid.UUID, scanLimit int) ([]*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(gdb *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: gdb, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.User
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

func (r *userRepo) ListCandidates(ctx context.Context, tx *gorm.DB, excludeIDs []uuid.UUID, scanLimit int) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.User
	q := transaction.WithContext(ctx).
		Where("is_active = ?", true).
		Where("is_banned = ?", false)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	err := q.Order("COALESCE(last_active_at, updated_at) DESC").
		Limit(scanLimit).
		Find(&out).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	return out, nil
}
