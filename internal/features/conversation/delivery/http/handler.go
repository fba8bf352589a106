package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/middleware"
	"support-relay-backend/internal/common/validation"
	"support-relay-backend/internal/features/conversation/service"
)

type ConversationHandler struct {
	service  *service.Service
	verifier middleware.SessionVerifier
}

func NewConversationHandler(service *service.Service, verifier middleware.SessionVerifier) *ConversationHandler {
	return &ConversationHandler{service: service, verifier: verifier}
}

// CreateConversationRequest opens a conversation.
type CreateConversationRequest struct {
	Title string `json:"title" example:"Billing question"`
}

func (h *ConversationHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users", middleware.RequireSession(h.verifier), middleware.RequireUser())
	{
		users.GET("/conversations", h.List)
		users.POST("/conversations", h.Create)
		users.GET("/conversations/:id/messages", h.Messages)
	}

	admin := router.Group("/admin", middleware.RequireSession(h.verifier), middleware.RequireAdmin())
	{
		admin.GET("/users", h.Users)
		admin.GET("/conversations", h.List)
		admin.GET("/conversations/:id/messages", h.Messages)
	}
}

// @Summary List conversations
// @Description Users get their own conversations, admins get all of them. Most recently active first.
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} chat.ConversationSummary
// @Failure 401 {object} middleware.ErrorResponse
// @Router /users/conversations [get]
// @Router /admin/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	out, err := h.service.List(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Open a conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateConversationRequest false "Title, defaults to New Support Request"
// @Success 201 {object} chat.Conversation
// @Failure 400 {object} middleware.ErrorResponse
// @Router /users/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.NewValidationError("body", "invalid JSON"))
			return
		}
	}
	p, _ := middleware.PrincipalFrom(c)
	conv, err := h.service.Create(c.Request.Context(), p, req.Title)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// @Summary Conversation history
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {array} chat.MessageView
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /users/conversations/{id}/messages [get]
// @Router /admin/conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperrors.NewValidationError("id", "must be an integer"))
		return
	}
	if err := validation.PositiveID(id, "id"); err != nil {
		_ = c.Error(err)
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	out, err := h.service.Messages(c.Request.Context(), p, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary List end users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} chat.Actor
// @Failure 403 {object} middleware.ErrorResponse
// @Router /admin/users [get]
func (h *ConversationHandler) Users(c *gin.Context) {
	out, err := h.service.Actors(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
