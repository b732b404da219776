package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alertflow/internal/config"
	"alertflow/internal/constants"
	"alertflow/internal/logger"
	"alertflow/pkg/health"
	"alertflow/pkg/middleware"
	"alertflow/pkg/ratelimit"
	"alertflow/pkg/tracing"
)

// RouteRegistrar adds routes behind the API rate limiter.
type RouteRegistrar interface {
	RegisterRoutes(router gin.IRouter)
}

type ServerOptions struct {
	Server      config.ServerConfig
	RateLimit   config.RateLimitConfig
	Tracing     bool
	ServiceName string
	Extra       []RouteRegistrar
}

type Server struct {
	server  *http.Server
	router  *gin.Engine
	limiter *ratelimit.KeyedLimiter
	logger  logger.Logger
}

func NewServer(opts ServerOptions, handler *Handler, checks *health.CheckerRegistry, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if opts.Tracing {
		router.Use(tracing.GinMiddleware(opts.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))

	s := &Server{router: router, logger: log}

	router.GET("/health", checks.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	if opts.RateLimit.Enabled {
		s.limiter = ratelimit.NewKeyedLimiter(ratelimit.Config{
			RPS:             opts.RateLimit.RPS,
			Burst:           opts.RateLimit.Burst,
			CleanupInterval: time.Duration(opts.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(opts.RateLimit.MaxAge) * time.Second,
		})
		api.Use(ratelimit.Middleware(s.limiter, ratelimit.ClientIP))
		log.Infow("Rate limiting enabled", "rps", opts.RateLimit.RPS, "burst", opts.RateLimit.Burst)
	}
	handler.RegisterRoutes(api)
	for _, r := range opts.Extra {
		r.RegisterRoutes(api)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Server.Port),
		Handler:      router,
		ReadTimeout:  opts.Server.ReadTimeoutSeconds,
		WriteTimeout: opts.Server.WriteTimeoutSeconds,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down within constants.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	if s.limiter != nil {
		go func() { _ = s.limiter.Run(ctx) }()
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.InfowCtx(ctx, "Server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
