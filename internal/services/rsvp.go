package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/guard"
	"github.com/foundernet/foundernet-backend/internal/logger"
	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
	"github.com/foundernet/foundernet-backend/internal/pkg/retry"
	"github.com/foundernet/foundernet-backend/internal/repos"
	"github.com/foundernet/foundernet-backend/internal/types"
)

// EventSummary is an event plus its live going-count.
type EventSummary struct {
	Event      *types.Event `json:"event"`
	GoingCount int64        `json:"going_count"`
	// SpotsLeft is -1 when the event has no attendance cap.
	SpotsLeft int `json:"spots_left"`
}

type RSVPService interface {
	// RSVP sets the caller's attendance state for an event, enforcing the
	// capacity cap when transitioning into going. Repeating the current
	// state is a no-op.
	RSVP(ctx context.Context, userID, eventID uuid.UUID, status string) (*types.EventRSVP, error)
	GetEvent(ctx context.Context, eventID uuid.UUID) (*EventSummary, error)
}

type rsvpService struct {
	events   repos.EventRepo
	rsvps    repos.EventRSVPRepo
	capacity *guard.Guard
	log      *logger.Logger
}

func NewRSVPService(
	events repos.EventRepo,
	rsvps repos.EventRSVPRepo,
	capacity *guard.Guard,
	baseLog *logger.Logger,
) RSVPService {
	return &rsvpService{
		events:   events,
		rsvps:    rsvps,
		capacity: capacity,
		log:      baseLog.With("service", "RSVPService"),
	}
}

func capacityKey(eventID uuid.UUID) string {
	return fmt.Sprintf("event_capacity:%s", eventID)
}

func (s *rsvpService) RSVP(ctx context.Context, userID, eventID uuid.UUID, status string) (*types.EventRSVP, error) {
	if userID == uuid.Nil || eventID == uuid.Nil {
		return nil, fmt.Errorf("%w: user and event ids required", apperrors.ErrInvalidArgument)
	}
	if !types.ValidRSVPStatus(status) {
		return nil, fmt.Errorf("%w: unknown rsvp status %q", apperrors.ErrInvalidArgument, status)
	}
	event, err := s.events.GetByID(ctx, nil, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil || !event.IsActive {
		return nil, fmt.Errorf("%w: event", apperrors.ErrNotFound)
	}

	var result *types.EventRSVP
	err = retry.Do(ctx, conflictRetries, conflictRetryBase, func() error {
		return s.rsvps.RunEventLocked(ctx, eventID, func(tx *gorm.DB) error {
			existing, err := s.rsvps.Get(ctx, tx, userID, eventID)
			if err != nil {
				return err
			}
			if existing != nil && existing.Status == status {
				result = existing
				return nil
			}

			limit := -1
			if event.MaxAttendees != nil {
				limit = *event.MaxAttendees
			}
			wasGoing := existing != nil && existing.Status == types.RSVPGoing
			nowGoing := status == types.RSVPGoing

			if limit >= 0 && (nowGoing || wasGoing) {
				// Counters for events predating the cap start from the
				// persisted attendance. This must run before Acquire and
				// Release alike: either one creates the counter row, and a
				// row born at zero would make the later seed a no-op.
				going, err := s.rsvps.CountGoing(ctx, tx, eventID)
				if err != nil {
					return err
				}
				if err := s.capacity.Seed(ctx, tx, capacityKey(eventID), int(going)); err != nil {
					return err
				}
			}
			if nowGoing {
				d, err := s.capacity.Acquire(ctx, tx, capacityKey(eventID), limit)
				if err != nil {
					return err
				}
				if !d.Granted {
					return apperrors.Reject(apperrors.CodeEventFull, "event is at capacity")
				}
			}
			if wasGoing && !nowGoing {
				if _, err := s.capacity.Release(ctx, tx, capacityKey(eventID)); err != nil {
					return err
				}
			}

			if existing == nil {
				rsvp := &types.EventRSVP{
					ID:      uuid.New(),
					UserID:  userID,
					EventID: eventID,
					Status:  status,
				}
				if err := s.rsvps.Create(ctx, tx, rsvp); err != nil {
					return err
				}
				result = rsvp
				return nil
			}
			if err := s.rsvps.UpdateStatus(ctx, tx, existing.ID, status); err != nil {
				return err
			}
			existing.Status = status
			result = existing
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *rsvpService) GetEvent(ctx context.Context, eventID uuid.UUID) (*EventSummary, error) {
	event, err := s.events.GetByID(ctx, nil, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event", apperrors.ErrNotFound)
	}
	going, err := s.rsvps.CountGoing(ctx, nil, eventID)
	if err != nil {
		return nil, err
	}
	spots := -1
	if event.MaxAttendees != nil {
		spots = *event.MaxAttendees - int(going)
		if spots < 0 {
			spots = 0
		}
	}
	return &EventSummary{Event: event, GoingCount: going, SpotsLeft: spots}, nil
}
