package probe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/exmdbctl/internal/auth"
	"github.com/danmuck/exmdbctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// AdminOptions configures the admin surface. A nil Auth leaves /stores open.
type AdminOptions struct {
	CorsOrigins []string
	Auth        auth.Validator
}

// Admin exposes a Prober over HTTP.
type Admin struct {
	id      string
	prober  *Prober
	router  *gin.Engine
	auth    auth.Validator
	started time.Time
}

func NewAdmin(id string, prober *Prober, opts AdminOptions) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.HTTPObserver(id, log.Logger, "/metrics", "/health"))
	if len(opts.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.CorsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{id: id, prober: prober, router: r, auth: opts.Auth, started: time.Now()}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(a.started).String(),
			"probe":     a.id,
			"connected": a.prober.Connected(),
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		ready := a.prober.Ready()
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "probe": a.id})
	})

	a.router.GET("/stores", a.requireToken(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"stores": a.prober.Snapshot()})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (a *Admin) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.auth == nil {
			c.Next()
			return
		}
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || a.auth.Validate(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (a *Admin) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("probe admin listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
