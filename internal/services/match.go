package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/guard"
	"github.com/foundernet/foundernet-backend/internal/logger"
	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
	"github.com/foundernet/foundernet-backend/internal/pkg/retry"
	"github.com/foundernet/foundernet-backend/internal/repos"
	"github.com/foundernet/foundernet-backend/internal/scoring"
	"github.com/foundernet/foundernet-backend/internal/types"
)

// Decide actions.
const (
	ActionView   = "view"
	ActionSave   = "save"
	ActionSkip   = "skip"
	ActionInvite = "invite"
)

const (
	conflictRetries   = 3
	conflictRetryBase = 25 * time.Millisecond
)

// QuotaStatus reports the caller's rolling invite budget without consuming it.
type QuotaStatus struct {
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	CanInvite bool `json:"can_invite"`
}

type MatchService interface {
	// Decide applies one forward-direction action from actor toward target,
	// lazily creating the edge with a score snapshot on first contact.
	Decide(ctx context.Context, actorID, targetID uuid.UUID, action, message string) (*types.Connection, error)
	// Respond lets the target of a pending invite accept or decline it.
	Respond(ctx context.Context, actorID, connectionID uuid.UUID, accept bool, message string) (*types.Connection, error)
	List(ctx context.Context, userID uuid.UUID, status string, offset, limit int) ([]*types.Connection, error)
	Get(ctx context.Context, userID, connectionID uuid.UUID) (*types.Connection, error)
	QuotaStatus(ctx context.Context, userID uuid.UUID) (*QuotaStatus, error)
}

type MatchServiceConfig struct {
	InviteQuotaLimit    int
	InviteMessageMaxLen int
}

type matchService struct {
	connections repos.ConnectionRepo
	users       repos.UserRepo
	messages    repos.MessageRepo
	quota       *guard.Guard
	cfg         MatchServiceConfig
	log         *logger.Logger
}

func NewMatchService(
	connections repos.ConnectionRepo,
	users repos.UserRepo,
	messages repos.MessageRepo,
	quota *guard.Guard,
	cfg MatchServiceConfig,
	baseLog *logger.Logger,
) MatchService {
	return &matchService{
		connections: connections,
		users:       users,
		messages:    messages,
		quota:       quota,
		cfg:         cfg,
		log:         baseLog.With("service", "MatchService"),
	}
}

func quotaKey(userID uuid.UUID) string {
	return fmt.Sprintf("invite_quota:%s", userID)
}

func validAction(action string) bool {
	switch action {
	case ActionView, ActionSave, ActionSkip, ActionInvite:
		return true
	}
	return false
}

// checkPair rejects state the transition protocol makes unreachable: one
// direction converged to connected while the other still sits in a live
// pre-terminal status. Every pair write re-runs this, so a poisoned pair
// stays read-only until repaired out of band.
func checkPair(fwd, rev *types.Connection) error {
	bad := func(conn, other *types.Connection) bool {
		return conn != nil && conn.Status == types.ConnectionConnected &&
			other != nil && !other.Terminal()
	}
	if bad(fwd, rev) || bad(rev, fwd) {
		return apperrors.Invariant("pair %s/%s has a connected edge with a live unconverged reverse edge",
			fwd.InitiatorID, fwd.TargetID)
	}
	return nil
}

func (s *matchService) Decide(ctx context.Context, actorID, targetID uuid.UUID, action, message string) (*types.Connection, error) {
	if actorID == uuid.Nil || targetID == uuid.Nil || actorID == targetID {
		return nil, fmt.Errorf("%w: bad actor/target pair", apperrors.ErrInvalidArgument)
	}
	if !validAction(action) {
		return nil, fmt.Errorf("%w: unknown action %q", apperrors.ErrInvalidArgument, action)
	}
	if action != ActionInvite && message != "" {
		return nil, fmt.Errorf("%w: message only allowed on invite", apperrors.ErrInvalidArgument)
	}
	if len(message) > s.cfg.InviteMessageMaxLen {
		return nil, fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrInvalidArgument, s.cfg.InviteMessageMaxLen)
	}

	var result *types.Connection
	err := retry.Do(ctx, conflictRetries, conflictRetryBase, func() error {
		return s.connections.RunPairLocked(ctx, actorID, targetID, func(tx *gorm.DB) error {
			fwd, err := s.connections.GetDirectional(ctx, tx, actorID, targetID)
			if err != nil {
				return err
			}
			rev, err := s.connections.GetDirectional(ctx, tx, targetID, actorID)
			if err != nil {
				return err
			}
			if err := checkPair(fwd, rev); err != nil {
				return err
			}
			if fwd == nil {
				fwd, err = s.createEdge(ctx, tx, actorID, targetID)
				if err != nil {
					return err
				}
			}
			switch action {
			case ActionView:
				err = s.applyView(ctx, tx, fwd)
			case ActionSave:
				err = s.applySave(ctx, tx, fwd)
			case ActionSkip:
				err = s.applySkip(ctx, tx, fwd)
			case ActionInvite:
				err = s.applyInvite(ctx, tx, fwd, rev, message)
			}
			if err != nil {
				return err
			}
			result = fwd
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createEdge materializes the forward edge on first contact, snapshotting the
// compatibility breakdown at that moment.
func (s *matchService) createEdge(ctx context.Context, tx *gorm.DB, actorID, targetID uuid.UUID) (*types.Connection, error) {
	actor, err := s.users.GetByID(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, tx, targetID)
	if err != nil {
		return nil, err
	}
	if actor == nil || target == nil {
		return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
	}
	if !target.IsActive || target.IsBanned {
		return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
	}
	conn := &types.Connection{
		ID:          uuid.New(),
		InitiatorID: actorID,
		TargetID:    targetID,
		Status:      types.ConnectionPending,
	}
	conn.ApplyScore(scoring.Score(actor.ScoringProfile(), target.ScoringProfile()))
	if err := s.connections.Create(ctx, tx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *matchService) applyView(ctx context.Context, tx *gorm.DB, fwd *types.Connection) error {
	if fwd.Status != types.ConnectionPending {
		return nil
	}
	return s.setStatus(ctx, tx, fwd, types.ConnectionViewed, nil)
}

func (s *matchService) applySave(ctx context.Context, tx *gorm.DB, fwd *types.Connection) error {
	switch fwd.Status {
	case types.ConnectionSaved:
		return nil
	case types.ConnectionPending, types.ConnectionViewed:
		return s.setStatus(ctx, tx, fwd, types.ConnectionSaved, nil)
	}
	return apperrors.Reject(apperrors.CodeInvalidTransition,
		fmt.Sprintf("cannot save from %s", fwd.Status))
}

func (s *matchService) applySkip(ctx context.Context, tx *gorm.DB, fwd *types.Connection) error {
	switch fwd.Status {
	case types.ConnectionPending, types.ConnectionViewed, types.ConnectionSaved:
		return s.setStatus(ctx, tx, fwd, types.ConnectionDismissed, nil)
	}
	return apperrors.Reject(apperrors.CodeInvalidTransition,
		fmt.Sprintf("cannot skip from %s", fwd.Status))
}

func (s *matchService) applyInvite(ctx context.Context, tx *gorm.DB, fwd, rev *types.Connection, message string) error {
	switch fwd.Status {
	case types.ConnectionInvited:
		return apperrors.Reject(apperrors.CodeAlreadyInvited, "invite already sent")
	case types.ConnectionConnected:
		return apperrors.Reject(apperrors.CodeAlreadyConnected, "already connected")
	case types.ConnectionDismissed:
		return apperrors.Reject(apperrors.CodeInvalidTransition, "cannot invite a dismissed profile")
	}

	// Quota is consumed inside the pair-locked transaction: a denial leaves
	// no edge mutation behind, and a rolled-back invite never burns budget.
	d, err := s.quota.Acquire(ctx, tx, quotaKey(fwd.InitiatorID), s.cfg.InviteQuotaLimit)
	if err != nil {
		return err
	}
	if !d.Granted {
		return apperrors.Reject(apperrors.CodeQuotaExceeded, "invite quota exhausted")
	}

	now := time.Now().UTC()
	if rev != nil && rev.Status == types.ConnectionInvited {
		// Mutual invites converge both edges to connected atomically; the
		// counter-invite doubles as the acceptance.
		if err := s.setStatus(ctx, tx, fwd, types.ConnectionConnected, map[string]interface{}{
			"invite_message": message,
			"invited_at":     now,
			"connected_at":   now,
		}); err != nil {
			return err
		}
		fwd.InviteMessage = message
		fwd.InvitedAt = &now
		fwd.ConnectedAt = &now
		if err := s.setStatus(ctx, tx, rev, types.ConnectionConnected, map[string]interface{}{
			"connected_at": now,
		}); err != nil {
			return err
		}
		rev.ConnectedAt = &now
	} else {
		if err := s.setStatus(ctx, tx, fwd, types.ConnectionInvited, map[string]interface{}{
			"invite_message": message,
			"invited_at":     now,
		}); err != nil {
			return err
		}
		fwd.InviteMessage = message
		fwd.InvitedAt = &now
	}

	if message != "" {
		return s.messages.Create(ctx, tx, &types.Message{
			ConnectionID: fwd.ID,
			SenderID:     fwd.InitiatorID,
			RecipientID:  fwd.TargetID,
			Content:      message,
			MessageType:  types.MessageTypeIntroRequest,
		})
	}
	return nil
}

func (s *matchService) setStatus(ctx context.Context, tx *gorm.DB, conn *types.Connection, status string, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.connections.UpdateFields(ctx, tx, conn.ID, updates); err != nil {
		return err
	}
	conn.Status = status
	return nil
}

func (s *matchService) Respond(ctx context.Context, actorID, connectionID uuid.UUID, accept bool, message string) (*types.Connection, error) {
	if actorID == uuid.Nil || connectionID == uuid.Nil {
		return nil, fmt.Errorf("%w: bad actor/connection pair", apperrors.ErrInvalidArgument)
	}
	if len(message) > s.cfg.InviteMessageMaxLen {
		return nil, fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrInvalidArgument, s.cfg.InviteMessageMaxLen)
	}

	// First read resolves the pair so the pair lock can be taken; the row is
	// re-read under the lock before any decision.
	first, err := s.connections.GetByID(ctx, nil, connectionID)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, fmt.Errorf("%w: connection", apperrors.ErrNotFound)
	}

	var result *types.Connection
	err = retry.Do(ctx, conflictRetries, conflictRetryBase, func() error {
		return s.connections.RunPairLocked(ctx, first.InitiatorID, first.TargetID, func(tx *gorm.DB) error {
			fwd, err := s.connections.GetByID(ctx, tx, connectionID)
			if err != nil {
				return err
			}
			if fwd == nil {
				return fmt.Errorf("%w: connection", apperrors.ErrNotFound)
			}
			if fwd.TargetID != actorID {
				return apperrors.Reject(apperrors.CodeNotInviteTarget, "only the invited user can respond")
			}
			rev, err := s.connections.GetDirectional(ctx, tx, fwd.TargetID, fwd.InitiatorID)
			if err != nil {
				return err
			}
			if err := checkPair(fwd, rev); err != nil {
				return err
			}
			switch fwd.Status {
			case types.ConnectionInvited:
			case types.ConnectionConnected:
				return apperrors.Reject(apperrors.CodeAlreadyConnected, "invite already accepted")
			default:
				return apperrors.Reject(apperrors.CodeInvalidTransition,
					fmt.Sprintf("cannot respond to an edge in %s", fwd.Status))
			}

			if !accept {
				if err := s.setStatus(ctx, tx, fwd, types.ConnectionDismissed, nil); err != nil {
					return err
				}
				result = fwd
				return nil
			}

			now := time.Now().UTC()
			if err := s.setStatus(ctx, tx, fwd, types.ConnectionConnected, map[string]interface{}{
				"connected_at": now,
			}); err != nil {
				return err
			}
			fwd.ConnectedAt = &now
			// The accepter's own live edge toward the inviter, if any,
			// converges with the acceptance.
			if rev != nil && !rev.Terminal() {
				if err := s.setStatus(ctx, tx, rev, types.ConnectionConnected, map[string]interface{}{
					"connected_at": now,
				}); err != nil {
					return err
				}
			}
			if message != "" {
				if err := s.messages.Create(ctx, tx, &types.Message{
					ConnectionID: fwd.ID,
					SenderID:     actorID,
					RecipientID:  fwd.InitiatorID,
					Content:      message,
					MessageType:  types.MessageTypeIntroResponse,
				}); err != nil {
					return err
				}
			}
			result = fwd
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *matchService) List(ctx context.Context, userID uuid.UUID, status string, offset, limit int) ([]*types.Connection, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id required", apperrors.ErrInvalidArgument)
	}
	if status != "" && !validStatusFilter(status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidArgument, status)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.connections.ListForUser(ctx, nil, userID, status, offset, limit)
}

func validStatusFilter(status string) bool {
	switch status {
	case types.ConnectionPending, types.ConnectionViewed, types.ConnectionSaved,
		types.ConnectionInvited, types.ConnectionConnected, types.ConnectionDismissed:
		return true
	}
	return false
}

func (s *matchService) Get(ctx context.Context, userID, connectionID uuid.UUID) (*types.Connection, error) {
	conn, err := s.connections.GetByID(ctx, nil, connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil || (conn.InitiatorID != userID && conn.TargetID != userID) {
		return nil, fmt.Errorf("%w: connection", apperrors.ErrNotFound)
	}
	return conn, nil
}

func (s *matchService) QuotaStatus(ctx context.Context, userID uuid.UUID) (*QuotaStatus, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id required", apperrors.ErrInvalidArgument)
	}
	d, err := s.quota.Peek(ctx, nil, quotaKey(userID), s.cfg.InviteQuotaLimit)
	if err != nil {
		return nil, err
	}
	return &QuotaStatus{
		Limit:     s.cfg.InviteQuotaLimit,
		Used:      d.Count,
		Remaining: d.Remaining,
		CanInvite: d.Granted,
	}, nil
}
