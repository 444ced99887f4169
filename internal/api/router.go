package api

import (
	"log/slog"

	"wschat/internal/middleware"
	"wschat/internal/server"

	"github.com/gin-gonic/gin"
)

type Router struct {
	ws     *WebSocketHandler
	events *EventHandlers
	log    *slog.Logger
}

// NewRouter wires the HTTP handlers. events may be nil when auditing is off.
func NewRouter(chat *server.Server, events EventStore, readLimit int64, log *slog.Logger) *Router {
	return &Router{
		ws:     NewWebSocketHandler(chat, readLimit, log),
		events: NewEventHandlers(events),
		log:    log,
	}
}

func (r *Router) RegisterRoutes(router *gin.Engine) {
	router.GET("/hc", HealthCheckHandler)
	router.GET(server.Path, r.ws.HandleWebSocket)

	{
		api := router.Group("/api")
		api.GET("/online", r.ws.GetConnectionInfo)
		api.GET("/events", r.events.GetEventsHandler)
	}
}

// Engine builds a gin engine with logging and recovery middleware and all routes.
func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Recovery(r.log), middleware.Logger(r.log))
	r.RegisterRoutes(engine)
	return engine
}

func HealthCheckHandler(c *gin.Context) {
	c.String(200, "Running")
}
