package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/middleware"
	"support-relay-backend/internal/features/relay/service"
)

type MessageHandler struct {
	service  *service.Service
	verifier middleware.SessionVerifier
}

func NewMessageHandler(service *service.Service, verifier middleware.SessionVerifier) *MessageHandler {
	return &MessageHandler{service: service, verifier: verifier}
}

// SubmitMessageRequest posts a message. Message is the legacy name of Body.
type SubmitMessageRequest struct {
	ConversationID int64  `json:"conversationId" binding:"required" example:"10"`
	Body           string `json:"body" example:"Hello"`
	Message        string `json:"message,omitempty" swaggerignore:"true"`
}

// SubmitMessageResponse acknowledges a stored message.
type SubmitMessageResponse struct {
	Success   bool  `json:"success"`
	MessageID int64 `json:"messageId"`
}

func (h *MessageHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/users/messages", middleware.RequireSession(h.verifier), middleware.RequireUser(), h.Submit)
	router.POST("/admin/messages", middleware.RequireSession(h.verifier), middleware.RequireAdmin(), h.Submit)
}

// @Summary Send a message
// @Description Stores the message and pushes it to the other side. Admin replies to Telegram users are also sent through the bot.
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SubmitMessageRequest true "Message"
// @Success 200 {object} SubmitMessageResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /users/messages [post]
// @Router /admin/messages [post]
func (h *MessageHandler) Submit(c *gin.Context) {
	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("conversationId", "required"))
		return
	}
	body := req.Body
	if body == "" {
		body = req.Message
	}

	p, _ := middleware.PrincipalFrom(c)
	m, err := h.service.SubmitMessage(c.Request.Context(), p, req.ConversationID, body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, SubmitMessageResponse{Success: true, MessageID: m.ID})
}
