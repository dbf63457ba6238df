package polls

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classpulse/backend/pkg/response"
)

// Handler serves the read-only poll HTTP endpoints. Mutations go through the
// WebSocket session only.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a polls HTTP handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// History handles GET /api/polls/history: closed polls with final results,
// newest first.
func (h *Handler) History(c *gin.Context) {
	entries, err := h.engine.History(c.Request.Context())
	if err != nil {
		h.logger.Error("poll history", zap.Error(err))
		response.Internal(c, "failed to fetch poll history")
		return
	}
	response.OK(c, gin.H{"history": entries})
}

// State handles GET /api/polls/state: the current snapshot, for dashboards
// that poll instead of holding a WebSocket.
func (h *Handler) State(c *gin.Context) {
	state, err := h.engine.State(c.Request.Context())
	if err != nil {
		h.logger.Error("poll state", zap.Error(err))
		response.Internal(c, "failed to fetch poll state")
		return
	}
	response.OK(c, state)
}
