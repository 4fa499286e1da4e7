package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chinmaysolanki/dost-ai/internal/api/middleware"
	"github.com/chinmaysolanki/dost-ai/internal/budget"
	"github.com/chinmaysolanki/dost-ai/internal/models"
	"github.com/chinmaysolanki/dost-ai/internal/services"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

const tokenTTL = 24 * time.Hour

type UserHandler struct {
	svc     services.UserService
	tracker budget.Tracker
	secret  string
}

func NewUserHandler(svc services.UserService, tracker budget.Tracker, jwtSecret string) *UserHandler {
	return &UserHandler{svc: svc, tracker: tracker, secret: jwtSecret}
}

type RegisterRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Email       string                 `json:"email" binding:"required,email"`
	Password    string                 `json:"password" binding:"required,min=8"`
	Preferences models.UserPreferences `json:"preferences"`
}

type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "UserHandler.Register", "invalid request body", err))
		return
	}

	u, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Preferences)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		UserID:  u.ID,
		Message: "User created successfully",
	})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "UserHandler.Login", "invalid request body", err))
		return
	}

	u, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := middleware.IssueToken(h.secret, u.ID, string(u.Role), tokenTTL)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "UserHandler.Login", "failed to issue token", err))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, UserID: u.ID})
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	target := c.Param("user_id")
	if target != userID && !isAdmin(c) {
		writeError(c, utils.E(utils.CodeForbidden, "UserHandler.Get", "forbidden", nil))
		return
	}

	u, err := h.svc.Get(c.Request.Context(), target)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"user": u}
	if h.tracker != nil {
		if usage, err := h.tracker.Usage(c.Request.Context(), target); err == nil {
			resp["usage"] = usage
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	target := c.Param("user_id")
	if target != userID && !isAdmin(c) {
		writeError(c, utils.E(utils.CodeForbidden, "UserHandler.UpdatePreferences", "forbidden", nil))
		return
	}

	var prefs models.UserPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "UserHandler.UpdatePreferences", "invalid request body", err))
		return
	}

	if err := h.svc.UpdatePreferences(c.Request.Context(), target, prefs); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "preferences updated"})
}

// Retire soft-disables an account. Admin only; history stays intact.
func (h *UserHandler) Retire(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	target := c.Param("user_id")
	if err := h.svc.Retire(c.Request.Context(), target); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user retired"})
}
