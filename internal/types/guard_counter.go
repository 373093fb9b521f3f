package types

import "time"

// GuardCounter is one bounded counter row: the unit of mutual exclusion for
// quota and capacity checks. Keys are namespaced, e.g. "invite_quota:<uuid>"
// or "event_capacity:<uuid>". WindowStart is only meaningful for windowed
// instantiations; identity-window counters never rotate.
type GuardCounter struct {
	Key         string    `gorm:"column:key;primaryKey" json:"key"`
	Count       int       `gorm:"column:count;not null;default:0" json:"count"`
	WindowStart time.Time `gorm:"column:window_start;not null" json:"window_start"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (GuardCounter) TableName() string {
	return "guard_counter"
}
