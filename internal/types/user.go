package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/foundernet/foundernet-backend/internal/scoring"
)

// User is owned and mutated by the profile/CRUD collaborator. The connection
// engine only reads it.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	Bio       string    `gorm:"column:bio" json:"bio,omitempty"`
	AvatarURL string    `gorm:"column:avatar_url" json:"avatar_url,omitempty"`

	// Onboarding attributes read by the scorer. A closed, typed set: the
	// profile boundary validates values, the scorer only defaults.
	Stage          string         `gorm:"column:stage" json:"stage,omitempty"`
	Commitment     string         `gorm:"column:commitment" json:"commitment,omitempty"`
	WorkingStyle   string         `gorm:"column:working_style" json:"working_style,omitempty"`
	Communication  string         `gorm:"column:communication" json:"communication,omitempty"`
	Location       string         `gorm:"column:location" json:"location,omitempty"`
	RemoteOpen     bool           `gorm:"column:remote_open;default:false" json:"remote_open"`
	TravelTolerant bool           `gorm:"column:travel_tolerant;default:false" json:"travel_tolerant"`
	Availability   string         `gorm:"column:availability" json:"availability,omitempty"`
	HasProofOfWork bool           `gorm:"column:has_proof_of_work;default:false" json:"has_proof_of_work"`
	Skills         datatypes.JSON `gorm:"type:jsonb;column:skills" json:"skills,omitempty"`

	IsActive     bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsBanned     bool       `gorm:"column:is_banned;not null;default:false" json:"is_banned"`
	LastActiveAt *time.Time `gorm:"column:last_active_at" json:"last_active_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// ScoringProfile converts the stored row into the scorer's read contract.
// Malformed skill payloads degrade to an empty skill set rather than failing;
// missing tags are filled from the known-skill table.
func (u *User) ScoringProfile() scoring.Profile {
	p := scoring.Profile{
		Stage:          u.Stage,
		Commitment:     u.Commitment,
		WorkingStyle:   u.WorkingStyle,
		Communication:  u.Communication,
		Location:       u.Location,
		RemoteOpen:     u.RemoteOpen,
		TravelTolerant: u.TravelTolerant,
		Availability:   u.Availability,
		HasProofOfWork: u.HasProofOfWork,
	}
	if len(u.Skills) > 0 {
		var skills []scoring.Skill
		if err := json.Unmarshal(u.Skills, &skills); err == nil {
			for i := range skills {
				if skills[i].Tag == "" {
					skills[i].Tag = scoring.TagForSkill(skills[i].Name)
				}
			}
			p.Skills = skills
		}
	}
	return p
}

// ActivityTime is the discovery tie-breaker: last profile activity, falling
// back to the row's update time.
func (u *User) ActivityTime() time.Time {
	if u.LastActiveAt != nil && !u.LastActiveAt.IsZero() {
		return *u.LastActiveAt
	}
	return u.UpdatedAt
}
