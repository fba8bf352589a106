package middleware

import (
	"github.com/gin-gonic/gin"
)

// InitDataHeader carries raw Telegram Mini App init data.
const InitDataHeader = "X-Telegram-Init-Data"

// InitData returns raw init data from the header or the init_data query
// parameter, in that order.
func InitData(c *gin.Context) string {
	if v := c.GetHeader(InitDataHeader); v != "" {
		return v
	}
	return c.Query("init_data")
}
