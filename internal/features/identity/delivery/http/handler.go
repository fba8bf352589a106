package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/middleware"
	"support-relay-backend/internal/features/identity/models"
	"support-relay-backend/internal/features/identity/service"
)

type AuthHandler struct {
	service *service.Service
}

func NewAuthHandler(service *service.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/guest", h.Guest)
		auth.POST("/login", h.Login)
		auth.POST("/telegram", h.Telegram)
		auth.POST("/telegram/webapp", h.WebApp)
		auth.POST("/verify", h.Verify)
	}
}

// @Summary Create guest session
// @Description Creates a new guest user and returns a session token valid for one day.
// @Tags auth
// @Produce json
// @Success 200 {object} models.SessionResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /auth/guest [post]
func (h *AuthHandler) Guest(c *gin.Context) {
	actor, sess, err := h.service.IssueGuestIdentity(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Role:      sess.Principal.Role,
		User:      actor,
	})
}

// @Summary Admin login
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Admin credentials"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("body", "username and password are required"))
		return
	}
	cred, sess, err := h.service.IssueAdminSession(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Role:      sess.Principal.Role,
		Admin:     &models.AdminResponse{ID: cred.ID, Username: cred.Username, Email: cred.Email},
	})
}

// @Summary Redeem Telegram hand-off token
// @Description Exchanges the one-time code sent by the bot for a session token. Each code works once.
// @Tags auth
// @Accept json
// @Produce json
// @Param token body models.TokenRequest true "One-time token"
// @Success 200 {object} models.SessionResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/telegram [post]
func (h *AuthHandler) Telegram(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("token", "required"))
		return
	}
	actor, sess, err := h.service.RedeemTelegramToken(c.Request.Context(), req.Token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Role:      sess.Principal.Role,
		User:      actor,
	})
}

// @Summary Telegram Mini App login
// @Tags auth
// @Produce json
// @Security TelegramInitData
// @Param init_data query string false "Raw init data when the header is not set"
// @Success 200 {object} models.SessionResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/telegram/webapp [post]
func (h *AuthHandler) WebApp(c *gin.Context) {
	actor, sess, err := h.service.AuthenticateWebApp(c.Request.Context(), middleware.InitData(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Role:      sess.Principal.Role,
		User:      actor,
	})
}

// @Summary Verify session token
// @Tags auth
// @Accept json
// @Produce json
// @Param token body models.TokenRequest true "Session token"
// @Success 200 {object} models.VerifyResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("token", "required"))
		return
	}
	p, err := h.service.VerifySession(req.Token)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := models.VerifyResponse{Valid: true, ActorID: p.ActorID, Role: p.Role}
	if !p.IsAdmin() {
		actor, err := h.service.Actor(c.Request.Context(), p.ActorID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		resp.User = actor
	}
	c.JSON(http.StatusOK, resp)
}
