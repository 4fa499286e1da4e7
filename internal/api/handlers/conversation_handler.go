package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	mongorepo "github.com/chinmaysolanki/dost-ai/internal/repositories/mongo"
	pgrepo "github.com/chinmaysolanki/dost-ai/internal/repositories/postgres"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

type ConversationHandler struct {
	turns   pgrepo.TurnRepository
	archive mongorepo.SessionArchiveRepository // nil when Mongo is absent
}

func NewConversationHandler(turns pgrepo.TurnRepository, archive mongorepo.SessionArchiveRepository) *ConversationHandler {
	return &ConversationHandler{turns: turns, archive: archive}
}

func (h *ConversationHandler) ListBySession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")

	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.turns.ListBySession(c.Request.Context(), userID, sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"turns":      rows,
	})
}

// ListArchived returns the user's evicted sessions, most recent first.
func (h *ConversationHandler) ListArchived(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.archive == nil {
		writeError(c, utils.E(utils.CodeUnavailable, "ConversationHandler.ListArchived", "session archive is not configured", nil))
		return
	}

	limit := 20
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := h.archive.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": rows})
}

// GetArchived returns one archived session, owner-or-admin only.
func (h *ConversationHandler) GetArchived(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.archive == nil {
		writeError(c, utils.E(utils.CodeUnavailable, "ConversationHandler.GetArchived", "session archive is not configured", nil))
		return
	}

	sessionID := c.Param("session_id")
	a, err := h.archive.GetBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			writeError(c, utils.E(utils.CodeNotFound, "ConversationHandler.GetArchived", "session not found", err))
			return
		}
		writeError(c, err)
		return
	}
	if a.UserID != userID && !isAdmin(c) {
		writeError(c, utils.E(utils.CodeForbidden, "ConversationHandler.GetArchived", "forbidden", nil))
		return
	}

	c.JSON(http.StatusOK, a)
}
