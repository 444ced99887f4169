package chat

import (
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

// Session event kinds recorded by the audit trail.
const (
	EventJoin   = "join"
	EventLeave  = "leave"
	EventReject = "reject"
)

// SessionEvent is one lifecycle entry of a chat connection.
// Chat content is never stored here.
type SessionEvent struct {
	ID         string `gorm:"primaryKey"`
	SessionID  string `gorm:"index;not null"`
	Username   string `gorm:"index"`
	Kind       string `gorm:"index;not null"`
	RemoteAddr string
	Detail     string
	CreatedAt  time.Time `gorm:"index"`
}

func (e *SessionEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID, err = nanoid.New(10)
	}
	return
}
