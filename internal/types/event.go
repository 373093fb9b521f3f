package types

import (
	"time"

	"github.com/google/uuid"
)

// RSVP statuses. Only "going" counts against event capacity.
const (
	RSVPGoing    = "going"
	RSVPMaybe    = "maybe"
	RSVPNotGoing = "not_going"
)

// Event rows are owned by the events collaborator; this core reads
// MaxAttendees to bound the capacity counter. Nil means unlimited.
type Event struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	Title       string     `gorm:"not null;column:title" json:"title"`
	Description string     `gorm:"column:description" json:"description,omitempty"`
	StartsAt    time.Time  `gorm:"column:starts_at;not null;index" json:"starts_at"`
	EndsAt      *time.Time `gorm:"column:ends_at" json:"ends_at,omitempty"`
	Location    string     `gorm:"column:location" json:"location,omitempty"`

	MaxAttendees *int `gorm:"column:max_attendees" json:"max_attendees,omitempty"`

	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Event) TableName() string {
	return "event"
}

// EventRSVP is one user's current attendance state for one event. The
// (user, event) pair is unique; re-RSVPs update the row in place.
type EventRSVP struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_event_rsvp,priority:1" json:"user_id"`
	EventID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_event_rsvp,priority:2" json:"event_id"`
	User    *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Event   *Event    `gorm:"constraint:OnDelete:CASCADE;foreignKey:EventID;references:ID" json:"event,omitempty"`

	Status string    `gorm:"column:status;not null" json:"status"`
	RSVPAt time.Time `gorm:"column:rsvp_at;not null;default:now()" json:"rsvp_at"`
}

func (EventRSVP) TableName() string {
	return "event_rsvp"
}

func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPGoing, RSVPMaybe, RSVPNotGoing:
		return true
	default:
		return false
	}
}
