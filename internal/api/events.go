package api

import (
	"net/http"
	"strconv"
	"time"

	"wschat/pkg/chat"

	"github.com/gin-gonic/gin"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// EventStore is the read side of the session audit trail.
type EventStore interface {
	RecentEvents(limit int) ([]chat.SessionEvent, error)
	UserEvents(username string, limit int) ([]chat.SessionEvent, error)
}

type EventHandlers struct {
	store EventStore
}

func NewEventHandlers(store EventStore) *EventHandlers {
	return &EventHandlers{store: store}
}

type EventInfo struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Username   string `json:"username"`
	Kind       string `json:"kind" example:"join"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type EventsResponse struct {
	Events []EventInfo `json:"events"`
	Count  int         `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"session audit is disabled"`
}

// GetEventsHandler lists recorded session events
// @Summary Get session events
// @Description Newest first. Only available when the audit database is configured.
// @Tags Audit
// @Produce json
// @Param limit query int false "Number of events to retrieve (default: 50, max: 500)"
// @Param username query string false "Only events for this username"
// @Success 200 {object} EventsResponse
// @Failure 404 {object} ErrorResponse "Audit disabled"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/events [get]
func (h *EventHandlers) GetEventsHandler(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session audit is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultEventsLimit)))
	if err != nil || limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	var events []chat.SessionEvent
	if username := c.Query("username"); username != "" {
		events, err = h.store.UserEvents(username, limit)
	} else {
		events, err = h.store.RecentEvents(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load events"})
		return
	}

	response := EventsResponse{Events: make([]EventInfo, len(events)), Count: len(events)}
	for i, e := range events {
		response.Events[i] = EventInfo{
			ID:         e.ID,
			SessionID:  e.SessionID,
			Username:   e.Username,
			Kind:       e.Kind,
			RemoteAddr: e.RemoteAddr,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, response)
}
