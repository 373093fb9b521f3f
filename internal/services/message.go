package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foundernet/foundernet-backend/internal/logger"
	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
	"github.com/foundernet/foundernet-backend/internal/repos"
	"github.com/foundernet/foundernet-backend/internal/types"
)

type MessageService interface {
	// Send appends a chat message to a connection's log. Free-form chat is
	// gated on the pair being connected; intro traffic is written by the
	// invite/respond flow, not here.
	Send(ctx context.Context, actorID, connectionID uuid.UUID, content string) (*types.Message, error)
	// List returns the log in send order, optionally only entries after the
	// given cursor. Participants can read before the gate opens so invite
	// intros stay visible.
	List(ctx context.Context, actorID, connectionID uuid.UUID, after *time.Time, limit int) ([]*types.Message, error)
	// MarkRead flags everything addressed to the actor on a connection as
	// read and reports how many messages that covered.
	MarkRead(ctx context.Context, actorID, connectionID uuid.UUID) (int64, error)
}

type MessageServiceConfig struct {
	MaxLen int
}

type messageService struct {
	connections repos.ConnectionRepo
	messages    repos.MessageRepo
	cfg         MessageServiceConfig
	log         *logger.Logger
}

func NewMessageService(
	connections repos.ConnectionRepo,
	messages repos.MessageRepo,
	cfg MessageServiceConfig,
	baseLog *logger.Logger,
) MessageService {
	return &messageService{
		connections: connections,
		messages:    messages,
		cfg:         cfg,
		log:         baseLog.With("service", "MessageService"),
	}
}

func (s *messageService) Send(ctx context.Context, actorID, connectionID uuid.UUID, content string) (*types.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty message", apperrors.ErrInvalidArgument)
	}
	if len(content) > s.cfg.MaxLen {
		return nil, fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrInvalidArgument, s.cfg.MaxLen)
	}
	conn, other, err := s.authorize(ctx, actorID, connectionID)
	if err != nil {
		return nil, err
	}
	connected, err := s.connections.IsConnected(ctx, nil, conn.InitiatorID, conn.TargetID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, apperrors.Reject(apperrors.CodeMessagingLocked, "messaging unlocks after both sides connect")
	}
	msg := &types.Message{
		ID:           uuid.New(),
		ConnectionID: conn.ID,
		SenderID:     actorID,
		RecipientID:  other,
		Content:      content,
		MessageType:  types.MessageTypeChat,
	}
	if err := s.messages.Create(ctx, nil, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *messageService) List(ctx context.Context, actorID, connectionID uuid.UUID, after *time.Time, limit int) ([]*types.Message, error) {
	conn, _, err := s.authorize(ctx, actorID, connectionID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return s.messages.ListByConnection(ctx, nil, conn.ID, after, limit)
}

func (s *messageService) MarkRead(ctx context.Context, actorID, connectionID uuid.UUID) (int64, error) {
	conn, _, err := s.authorize(ctx, actorID, connectionID)
	if err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, nil, conn.ID, actorID)
}

// authorize resolves the connection and confirms the actor is one of its two
// participants, returning the other side's id. Non-participants get the same
// answer as a missing row.
func (s *messageService) authorize(ctx context.Context, actorID, connectionID uuid.UUID) (*types.Connection, uuid.UUID, error) {
	if actorID == uuid.Nil || connectionID == uuid.Nil {
		return nil, uuid.Nil, fmt.Errorf("%w: actor and connection ids required", apperrors.ErrInvalidArgument)
	}
	conn, err := s.connections.GetByID(ctx, nil, connectionID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if conn == nil {
		return nil, uuid.Nil, fmt.Errorf("%w: connection", apperrors.ErrNotFound)
	}
	switch actorID {
	case conn.InitiatorID:
		return conn, conn.TargetID, nil
	case conn.TargetID:
		return conn, conn.InitiatorID, nil
	}
	return nil, uuid.Nil, fmt.Errorf("%w: connection", apperrors.ErrNotFound)
}
