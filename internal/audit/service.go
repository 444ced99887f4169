package audit

import (
	"errors"

	. "wschat/pkg/chat"

	"gorm.io/gorm"
)

const maxEventsLimit = 500

// AuditService records the lifecycle of chat sessions.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// LogJoin logs a successful handshake
func (s *AuditService) LogJoin(sessionID, username, remoteAddr string) error {
	return s.create(SessionEvent{
		SessionID:  sessionID,
		Username:   username,
		Kind:       EventJoin,
		RemoteAddr: remoteAddr,
		Detail:     "Joined the chat",
	})
}

// LogLeave logs the end of an active session
func (s *AuditService) LogLeave(sessionID, username, remoteAddr string) error {
	return s.create(SessionEvent{
		SessionID:  sessionID,
		Username:   username,
		Kind:       EventLeave,
		RemoteAddr: remoteAddr,
		Detail:     "Left the chat",
	})
}

// LogReject logs a handshake refused because the username was taken
func (s *AuditService) LogReject(sessionID, username, remoteAddr string) error {
	return s.create(SessionEvent{
		SessionID:  sessionID,
		Username:   username,
		Kind:       EventReject,
		RemoteAddr: remoteAddr,
		Detail:     "Username '" + username + "' already taken",
	})
}

func (s *AuditService) create(event SessionEvent) error {
	return s.db.Create(&event).Error
}

// RecentEvents returns the newest events first.
func (s *AuditService) RecentEvents(limit int) ([]SessionEvent, error) {
	return s.find(s.db, limit)
}

// UserEvents returns the newest events recorded for username.
func (s *AuditService) UserEvents(username string, limit int) ([]SessionEvent, error) {
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	return s.find(s.db.Where("username = ?", username), limit)
}

func (s *AuditService) find(query *gorm.DB, limit int) ([]SessionEvent, error) {
	if limit <= 0 || limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	var events []SessionEvent
	err := query.Order("created_at DESC").Order("rowid DESC").Limit(limit).Find(&events).Error
	return events, err
}
