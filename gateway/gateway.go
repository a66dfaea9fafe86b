package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/relay/config"
	"github.com/yaoapp/relay/router"
	"github.com/yaoapp/relay/usage"
)

// ShutdownTimeout how long Stop waits for in-flight requests
const ShutdownTimeout = 30 * time.Second

// Gateway the translating HTTP server: Anthropic Messages API in,
// OpenAI chat completions out
type Gateway struct {
	cfg    atomic.Pointer[config.Config]
	routes atomic.Pointer[router.Router]
	meter  *usage.Meter
	server *http.Server
	engine *gin.Engine
}

// New builds the gateway: router, usage meter, and the gin engine
func New(cfg config.Config) (*Gateway, error) {
	g := &Gateway{}
	g.cfg.Store(&cfg)
	g.routes.Store(router.New(cfg))

	if cfg.TrackUsage {
		meter, err := usage.Open(cfg.UsageDBPath)
		if err != nil {
			return nil, fmt.Errorf("usage meter: %s", err.Error())
		}
		g.meter = meter
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	g.engine = engine
	g.bind(engine)
	return g, nil
}

// bind attaches the routes
func (g *Gateway) bind(engine *gin.Engine) {
	engine.GET("/health", g.handleHealth)

	v1 := engine.Group("/v1", g.authGuard)
	v1.POST("/messages", g.handleMessages)
	v1.POST("/messages/count_tokens", g.handleCountTokens)
	v1.GET("/models", g.handleModels)

	stats := engine.Group("/usage", g.authGuard)
	stats.GET("/summary", g.handleUsageSummary)
	stats.GET("/top", g.handleUsageTop)
}

// Config the current configuration snapshot
func (g *Gateway) Config() *config.Config {
	return g.cfg.Load()
}

// Router the current routing table
func (g *Gateway) Router() *router.Router {
	return g.routes.Load()
}

// Reload swaps the routing table and config. In-flight requests keep
// the snapshot they resolved; the listen address and usage store keep
// their boot values.
func (g *Gateway) Reload(cfg config.Config) {
	g.cfg.Store(&cfg)
	g.routes.Store(router.New(cfg))
	log.Info("[gateway] config reloaded, tiers: big=%s middle=%s small=%s",
		cfg.BigModel, cfg.MiddleModel, cfg.SmallModel)
}

// Start serves until Stop or a listener error
func (g *Gateway) Start() error {
	cfg := g.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	g.server = &http.Server{Addr: addr, Handler: g.engine}

	log.Info("[gateway] listening on %s", addr)
	err := g.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests up to the shutdown timeout, then
// closes the usage meter
func (g *Gateway) Stop() error {
	var errs error

	if g.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := g.server.Shutdown(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if g.meter != nil {
		if dropped := g.meter.Dropped(); dropped > 0 {
			log.Warn("[gateway] %d usage rows dropped under load", dropped)
		}
		if err := g.meter.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// Meter the usage meter, nil when tracking is off
func (g *Gateway) Meter() *usage.Meter {
	return g.meter
}

// Handler exposes the engine for tests
func (g *Gateway) Handler() http.Handler {
	return g.engine
}
