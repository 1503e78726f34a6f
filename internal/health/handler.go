package health

import (
	"context"
	"net/http"
	"time"

	httputil "teamup/pkg/http"
	"teamup/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const readyTimeout = 2 * time.Second

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

type Response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Events   string `json:"events,omitempty"`
}

type Handler struct {
	db     Pinger
	events string
	log    *logger.Logger
}

// NewHandler reports liveness and database readiness. kafkaEnabled only
// decides how the events publisher is described.
func NewHandler(db Pinger, kafkaEnabled bool, log *logger.Logger) *Handler {
	events := "in-process"
	if kafkaEnabled {
		events = "kafka"
	}
	return &Handler{
		db:     db,
		events: events,
		log:    log,
	}
}

func (h *Handler) write(w http.ResponseWriter, handler string, status int, body Response) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.write(w, "Health", http.StatusOK, Response{Status: "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx, readpref.Primary()); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		h.write(w, "Ready", http.StatusServiceUnavailable, Response{
			Status:   "unavailable",
			Database: "error",
			Events:   h.events,
		})
		return
	}

	h.write(w, "Ready", http.StatusOK, Response{
		Status:   "ready",
		Database: "ok",
		Events:   h.events,
	})
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
