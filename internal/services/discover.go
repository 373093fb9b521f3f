package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foundernet/foundernet-backend/internal/logger"
	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
	"github.com/foundernet/foundernet-backend/internal/pkg/retry"
	"github.com/foundernet/foundernet-backend/internal/repos"
	"github.com/foundernet/foundernet-backend/internal/scoring"
	"github.com/foundernet/foundernet-backend/internal/types"
)

// Candidate is one discovery result: the profile plus the live compatibility
// breakdown computed for the viewer.
type Candidate struct {
	User      *types.User       `json:"user"`
	Breakdown scoring.Breakdown `json:"breakdown"`
}

// ScoreCache is an optional cross-replica cache for pair breakdowns. Misses
// and failures fall through to a fresh computation, so it is
// correctness-neutral.
type ScoreCache interface {
	Get(ctx context.Context, a, b uuid.UUID) (scoring.Breakdown, bool)
	Set(ctx context.Context, a, b uuid.UUID, bd scoring.Breakdown)
}

type DiscoverService interface {
	// Discover returns scored candidates the viewer has not already acted
	// on, best first, lazily materializing pending edges for the returned
	// page.
	Discover(ctx context.Context, viewerID uuid.UUID, minScore *int, page, pageSize int) ([]*Candidate, error)
	// Compatibility computes the live breakdown between the viewer and one
	// other profile without touching the ledger.
	Compatibility(ctx context.Context, viewerID, otherID uuid.UUID) (*Candidate, error)
}

type DiscoverServiceConfig struct {
	MinScore    int
	PageSize    int
	MaxPageSize int
	ScanLimit   int
}

type discoverService struct {
	users       repos.UserRepo
	connections repos.ConnectionRepo
	cache       ScoreCache
	cfg         DiscoverServiceConfig
	log         *logger.Logger
}

func NewDiscoverService(
	users repos.UserRepo,
	connections repos.ConnectionRepo,
	cache ScoreCache,
	cfg DiscoverServiceConfig,
	baseLog *logger.Logger,
) DiscoverService {
	return &discoverService{
		users:       users,
		connections: connections,
		cache:       cache,
		cfg:         cfg,
		log:         baseLog.With("service", "DiscoverService"),
	}
}

func (s *discoverService) Discover(ctx context.Context, viewerID uuid.UUID, minScore *int, page, pageSize int) ([]*Candidate, error) {
	viewer, err := s.loadViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	threshold := s.cfg.MinScore
	if minScore != nil {
		if *minScore < 0 || *minScore > scoring.MaxTotal {
			return nil, fmt.Errorf("%w: min score out of range", apperrors.ErrInvalidArgument)
		}
		threshold = *minScore
	}
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}

	excluded, err := s.connections.ExcludedTargets(ctx, nil, viewerID)
	if err != nil {
		return nil, err
	}
	excluded = append(excluded, viewerID)
	pool, err := s.users.ListCandidates(ctx, nil, excluded, s.cfg.ScanLimit)
	if err != nil {
		return nil, err
	}

	viewerProfile := viewer.ScoringProfile()
	scored := make([]*Candidate, 0, len(pool))
	for _, u := range pool {
		bd := s.score(ctx, viewerID, u.ID, viewerProfile, u.ScoringProfile())
		if bd.Total < threshold {
			continue
		}
		scored = append(scored, &Candidate{User: u, Breakdown: bd})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Breakdown.Total != scored[j].Breakdown.Total {
			return scored[i].Breakdown.Total > scored[j].Breakdown.Total
		}
		return scored[i].User.ActivityTime().After(scored[j].User.ActivityTime())
	})

	start := page * pageSize
	if start >= len(scored) {
		return []*Candidate{}, nil
	}
	end := start + pageSize
	if end > len(scored) {
		end = len(scored)
	}
	out := scored[start:end]

	// Surfacing a profile creates its pending edge so the ledger, not the
	// queue, owns what the viewer has seen. Failures here degrade to a
	// warning: the page is still served.
	for _, c := range out {
		if err := s.materialize(ctx, viewerID, c); err != nil {
			s.log.Warn("failed to materialize discovery edge",
				"target_id", c.User.ID, "error", err)
		}
	}
	return out, nil
}

func (s *discoverService) materialize(ctx context.Context, viewerID uuid.UUID, c *Candidate) error {
	return retry.Do(ctx, conflictRetries, conflictRetryBase, func() error {
		return s.connections.RunPairLocked(ctx, viewerID, c.User.ID, func(tx *gorm.DB) error {
			existing, err := s.connections.GetDirectional(ctx, tx, viewerID, c.User.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
			conn := &types.Connection{
				ID:          uuid.New(),
				InitiatorID: viewerID,
				TargetID:    c.User.ID,
				Status:      types.ConnectionPending,
			}
			conn.ApplyScore(c.Breakdown)
			return s.connections.Create(ctx, tx, conn)
		})
	})
}

func (s *discoverService) Compatibility(ctx context.Context, viewerID, otherID uuid.UUID) (*Candidate, error) {
	if viewerID == otherID {
		return nil, fmt.Errorf("%w: cannot score a profile against itself", apperrors.ErrInvalidArgument)
	}
	viewer, err := s.loadViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	other, err := s.users.GetByID(ctx, nil, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil || !other.IsActive || other.IsBanned {
		return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
	}
	bd := s.score(ctx, viewerID, otherID, viewer.ScoringProfile(), other.ScoringProfile())
	return &Candidate{User: other, Breakdown: bd}, nil
}

func (s *discoverService) loadViewer(ctx context.Context, viewerID uuid.UUID) (*types.User, error) {
	if viewerID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id required", apperrors.ErrInvalidArgument)
	}
	viewer, err := s.users.GetByID(ctx, nil, viewerID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
	}
	return viewer, nil
}

func (s *discoverService) score(ctx context.Context, a, b uuid.UUID, pa, pb scoring.Profile) scoring.Breakdown {
	if s.cache != nil {
		if bd, ok := s.cache.Get(ctx, a, b); ok {
			return bd
		}
	}
	bd := scoring.Score(pa, pb)
	if s.cache != nil {
		s.cache.Set(ctx, a, b, bd)
	}
	return bd
}
