package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/chinmaysolanki/dost-ai/internal/gateway"
	"github.com/chinmaysolanki/dost-ai/internal/hub"
	"github.com/chinmaysolanki/dost-ai/internal/learning"
	"github.com/chinmaysolanki/dost-ai/internal/orchestrator"
	pgrepo "github.com/chinmaysolanki/dost-ai/internal/repositories/postgres"
)

type StatusHandler struct {
	orch    *orchestrator.Orchestrator
	hub     *hub.Hub
	engine  *learning.Engine
	catalog *gateway.Catalog
	turns   pgrepo.TurnRepository
	users   pgrepo.UserRepository
}

func NewStatusHandler(orch *orchestrator.Orchestrator, h *hub.Hub, engine *learning.Engine, catalog *gateway.Catalog, turns pgrepo.TurnRepository, users pgrepo.UserRepository) *StatusHandler {
	return &StatusHandler{orch: orch, hub: h, engine: engine, catalog: catalog, turns: turns, users: users}
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"ai_enabled": os.Getenv("OPENAI_API_KEY") != "" || os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("VERTEX_PROJECT_ID") != "",
	})
}

func (h *StatusHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (h *StatusHandler) Models(c *gin.Context) {
	ids := h.catalog.IDs()
	profiles := make([]gateway.ModelProfile, 0, len(ids))
	for _, id := range ids {
		p, _ := h.catalog.Lookup(id)
		profiles = append(profiles, p)
	}

	c.JSON(http.StatusOK, gin.H{
		"available_models": profiles,
		"default_model":    h.catalog.Default().ID,
	})
}

func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	totalUsers := int64(0)
	totalTurns := int64(0)
	totalTokens := int64(0)
	if h.users != nil {
		totalUsers, _ = h.users.Count(ctx)
	}
	if h.turns != nil {
		totalTurns, _ = h.turns.CountAll(ctx)
		totalTokens, _ = h.turns.SumTokens(ctx)
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "running",
		"stats": gin.H{
			"total_users":       totalUsers,
			"total_turns":       totalTurns,
			"total_tokens_used": totalTokens,
			"active_sessions":   h.orch.ActiveSessions(),
			"connected_users":   h.hub.UserCount(),
			"live_connections":  h.hub.ConnectionCount(),
			"learning_records":  h.engine.RecordCount(),
		},
		"available_models": h.catalog.IDs(),
		"default_model":    h.catalog.Default().ID,
	})
}
