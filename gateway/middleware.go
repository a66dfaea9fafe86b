package gateway

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yaoapp/relay/message"
)

// authGuard enforces the proxy auth key when one is configured. The
// client may send it as x-api-key (Anthropic convention) or as a
// Bearer token.
func (g *Gateway) authGuard(c *gin.Context) {
	key := g.Config().ProxyAuthKey
	if key == "" {
		c.Next()
		return
	}

	provided := c.GetHeader("x-api-key")
	if provided == "" {
		auth := c.GetHeader("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			provided = strings.TrimPrefix(auth, "Bearer ")
		}
	}

	if provided != key {
		apiErr := message.ErrAuthentication("invalid API key")
		c.AbortWithStatusJSON(apiErr.Status, apiErr.Body())
		return
	}
	c.Next()
}
