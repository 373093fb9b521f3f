package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/db"
	"github.com/foundernet/foundernet-backend/internal/logger"
	"github.com/foundernet/foundernet-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.Message) error
	// ListByConnection returns messages on a connection in send order,
	// optionally only those created after the given cursor.
	ListByConnection(ctx context.Context, tx *gorm.DB, connectionID uuid.UUID, after *time.Time, limit int) ([]*types.Message, error)
	// MarkRead stamps every unread message addressed to the recipient on a
	// connection and returns how many rows it touched.
	MarkRead(ctx context.Context, tx *gorm.DB, connectionID, recipientID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(gdb *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: gdb, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return db.Classify(transaction.WithContext(ctx).Create(msg).Error)
}

func (r *messageRepo) ListByConnection(ctx context.Context, tx *gorm.DB, connectionID uuid.UUID, after *time.Time, limit int) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Message
	if connectionID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(ctx).
		Where("connection_id = ?", connectionID)
	if after != nil {
		q = q.Where("created_at > ?", *after)
	}
	err := q.Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	return out, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, tx *gorm.DB, connectionID, recipientID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Message{}).
		Where("connection_id = ? AND recipient_id = ? AND is_read = false", connectionID, recipientID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, db.Classify(res.Error)
	}
	return res.RowsAffected, nil
}
