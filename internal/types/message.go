package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageTypeIntroRequest  = "intro_request"
	MessageTypeIntroResponse = "intro_response"
	MessageTypeChat          = "message"
)

// Message is one entry in the append-only log for a connection. Rows are
// never updated except for read receipts; consumers poll with a created_at
// cursor. Writes of type "message" are only accepted once the pair is
// connected.
type Message struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConnectionID uuid.UUID   `gorm:"type:uuid;not null;index" json:"connection_id"`
	Connection   *Connection `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConnectionID;references:ID" json:"-"`
	SenderID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"sender_id"`
	RecipientID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"recipient_id"`

	Content     string `gorm:"type:text;not null" json:"content"`
	MessageType string `gorm:"column:message_type;not null;default:message" json:"message_type"`

	IsRead bool       `gorm:"column:is_read;not null;default:false" json:"is_read"`
	ReadAt *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (Message) TableName() string {
	return "message"
}
