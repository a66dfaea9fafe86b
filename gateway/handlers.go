package gateway

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"github.com/yaoapp/relay/message"
	"github.com/yaoapp/relay/router"
	"github.com/yaoapp/relay/transform"
)

// handleHealth serves GET /health
func (g *Gateway) handleHealth(c *gin.Context) {
	cfg := g.Config()
	routes := g.Router().Routes()

	reasoning := false
	mapping := gin.H{}
	for name, route := range routes {
		mapping[name] = route.Model
		if router.SupportsReasoning(route.Model) {
			reasoning = true
		}
	}

	c.JSON(200, gin.H{
		"status": "healthy",
		"provider": gin.H{
			"base_url":      cfg.ProviderBaseURL,
			"model_mapping": mapping,
		},
		"features": gin.H{
			"streaming": true,
			"reasoning": reasoning,
		},
	})
}

// handleModels serves GET /v1/models
func (g *Gateway) handleModels(c *gin.Context) {
	created := time.Now().Unix()
	data := []gin.H{}
	for _, id := range g.Router().Models() {
		data = append(data, gin.H{
			"id":       id,
			"object":   "model",
			"owned_by": "relay",
			"created":  created,
		})
	}
	c.JSON(200, gin.H{"object": "list", "data": data})
}

// handleCountTokens serves POST /v1/messages/count_tokens
func (g *Gateway) handleCountTokens(c *gin.Context) {
	var req message.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, message.ErrInvalidRequest(fmt.Sprintf("invalid request body: %s", err.Error())))
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		g.fail(c, message.ErrInvalidRequest("model and messages are required"))
		return
	}

	c.JSON(200, message.CountTokensResponse{InputTokens: transform.CountTokens(&req)})
}

// handleUsageSummary serves GET /usage/summary?days=N
func (g *Gateway) handleUsageSummary(c *gin.Context) {
	if g.meter == nil {
		g.fail(c, message.ErrInvalidRequest("usage tracking is disabled"))
		return
	}

	days := cast.ToInt(c.DefaultQuery("days", "7"))
	summary, err := g.meter.GetSummary(days)
	if err != nil {
		g.fail(c, message.ErrBackend(err.Error()))
		return
	}

	recommend, err := g.meter.RecommendTOON()
	if err == nil {
		c.JSON(200, gin.H{"summary": summary, "recommend_toon": recommend, "dropped_rows": g.meter.Dropped()})
		return
	}
	c.JSON(200, gin.H{"summary": summary})
}

// handleUsageTop serves GET /usage/top?limit=N&days=N
func (g *Gateway) handleUsageTop(c *gin.Context) {
	if g.meter == nil {
		g.fail(c, message.ErrInvalidRequest("usage tracking is disabled"))
		return
	}

	limit := cast.ToInt(c.DefaultQuery("limit", "10"))
	days := cast.ToInt(c.DefaultQuery("days", "7"))
	stats, err := g.meter.TopModels(limit, days)
	if err != nil {
		g.fail(c, message.ErrBackend(err.Error()))
		return
	}
	c.JSON(200, gin.H{"models": stats})
}
