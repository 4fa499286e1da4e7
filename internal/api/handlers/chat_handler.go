package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chinmaysolanki/dost-ai/internal/orchestrator"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

type ChatHandler struct {
	orch *orchestrator.Orchestrator
}

func NewChatHandler(orch *orchestrator.Orchestrator) *ChatHandler {
	return &ChatHandler{orch: orch}
}

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

type ChatResponse struct {
	Response     string  `json:"response"`
	SessionID    string  `json:"session_id"`
	Role         string  `json:"role"`
	Timestamp    string  `json:"timestamp"`
	TokensUsed   int     `json:"tokens_used"`
	ModelUsed    string  `json:"model_used,omitempty"`
	CostEstimate float64 `json:"cost_estimate,omitempty"`
	Degraded     bool    `json:"degraded"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Chat", "invalid request body", err))
		return
	}

	res, err := h.orch.HandleMessage(c.Request.Context(), userID, req.SessionID, req.Message, req.Model)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Response:     res.Turn.Text,
		SessionID:    res.SessionID,
		Role:         string(res.Turn.Role),
		Timestamp:    res.Turn.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		TokensUsed:   res.Turn.TokenCount,
		ModelUsed:    res.Turn.ModelUsed,
		CostEstimate: res.Turn.CostEstimate,
		Degraded:     res.Turn.Degraded,
	})
}
