package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/foundernet/foundernet-backend/internal/scoring"
)

// Connection lifecycle statuses. Connected and dismissed are terminal.
const (
	ConnectionPending   = "pending"
	ConnectionViewed    = "viewed"
	ConnectionSaved     = "saved"
	ConnectionInvited   = "invited"
	ConnectionConnected = "connected"
	ConnectionDismissed = "dismissed"
)

// Connection is a directional edge recording one user's interest in another.
// The (initiator, target) pair is unique; the reverse direction may exist as
// its own row and is reconciled at invite/respond time under the pair lock.
// The score columns are a snapshot taken when the row is created and are
// never recomputed, so explanations stay stable as profiles change.
type Connection struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	InitiatorID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_connection_pair,priority:1" json:"initiator_id"`
	TargetID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_connection_pair,priority:2" json:"target_id"`
	Initiator   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:InitiatorID;references:ID" json:"initiator,omitempty"`
	Target      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TargetID;references:ID" json:"target,omitempty"`

	Status string `gorm:"column:status;not null;default:pending;index" json:"status"`

	MatchScore           int    `gorm:"column:match_score;not null;index" json:"match_score"`
	MatchExplanation     string `gorm:"column:match_explanation" json:"match_explanation,omitempty"`
	ComplementarityScore int    `gorm:"column:complementarity_score" json:"complementarity_score"`
	StageAlignmentScore  int    `gorm:"column:stage_alignment_score" json:"stage_alignment_score"`
	CommitmentScore      int    `gorm:"column:commitment_alignment_score" json:"commitment_alignment_score"`
	WorkingStyleScore    int    `gorm:"column:working_style_score" json:"working_style_score"`
	LocationFitScore     int    `gorm:"column:location_fit_score" json:"location_fit_score"`
	IntentScore          int    `gorm:"column:intent_score" json:"intent_score"`

	InviteMessage string     `gorm:"column:invite_message" json:"invite_message,omitempty"`
	InvitedAt     *time.Time `gorm:"column:invited_at" json:"invited_at,omitempty"`
	ConnectedAt   *time.Time `gorm:"column:connected_at" json:"connected_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Connection) TableName() string {
	return "connection"
}

// ApplyScore copies a breakdown snapshot onto the row.
func (c *Connection) ApplyScore(bd scoring.Breakdown) {
	c.MatchScore = bd.Total
	c.MatchExplanation = bd.Explanation
	c.ComplementarityScore = bd.Complementarity
	c.StageAlignmentScore = bd.StageAlignment
	c.CommitmentScore = bd.CommitmentAlignment
	c.WorkingStyleScore = bd.WorkingStyleAlignment
	c.LocationFitScore = bd.LocationFit
	c.IntentScore = bd.Intent
}

// Terminal reports whether the status admits no further transitions.
func (c *Connection) Terminal() bool {
	return c.Status == ConnectionConnected || c.Status == ConnectionDismissed
}
