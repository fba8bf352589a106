package http

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/features/telegram/service"
	"support-relay-backend/internal/platform/telegram"
)

// SecretHeader carries the secret registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type WebhookHandler struct {
	bot    service.UpdateHandler
	secret string
}

func NewWebhookHandler(bot service.UpdateHandler, secret string) *WebhookHandler {
	return &WebhookHandler{bot: bot, secret: secret}
}

func (h *WebhookHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/telegram-webhook", h.Receive)
}

// @Summary Telegram webhook
// @Description Receives Bot API updates. Always answers 200 once the update is accepted.
// @Tags telegram
// @Accept json
// @Produce json
// @Param update body telegram.Update true "Bot API update"
// @Success 200 {object} map[string]bool
// @Failure 401 {object} middleware.ErrorResponse
// @Router /telegram-webhook [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretHeader)), []byte(h.secret)) != 1 {
		_ = c.Error(apperrors.NewInvalidCredentialError("webhook secret mismatch"))
		return
	}

	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		_ = c.Error(apperrors.NewValidationError("update", "invalid JSON"))
		return
	}

	// Telegram may drop the connection; the update is still ours to finish.
	h.bot.HandleUpdate(context.WithoutCancel(c.Request.Context()), u)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
