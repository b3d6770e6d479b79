package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/coordinator"
	obslogger "github.com/amrherek/OJO-DynamicDiscount/internal/observability/logger"
	obstracing "github.com/amrherek/OJO-DynamicDiscount/internal/observability/tracing"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(provideRunner),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

const shutdownTimeout = 10 * time.Second

// Runner starts one discount run and reports how it ended.
type Runner interface {
	ProcessDiscounts(ctx context.Context, mode, input string) coordinator.Result
}

func provideRunner(c *coordinator.Coordinator) Runner { return c }

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Runner Runner
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	runner Runner

	// runs tracks detached discount runs so shutdown can wait for them.
	runs sync.WaitGroup
}

func NewServer(p Params) (*Server, error) {
	if p.Log == nil || p.Runner == nil {
		return nil, errors.New("invalid http server config")
	}
	s := &Server{
		cfg:    p.Config,
		log:    p.Log.Named("http").With(zap.String("component", "http")),
		runner: p.Runner,
	}
	s.engine = s.NewEngine()
	return s, nil
}

func (s *Server) NewEngine() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/discounts/process", s.ProcessDiscounts)

	return r
}

func (s *Server) Handler() http.Handler { return s.engine }

// Wait blocks until every detached run has returned or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http.listen", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Fatal("http.listen_failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := s.Wait(shutdownCtx); err != nil {
				s.log.Warn("http.shutdown.runs_pending", zap.Error(err))
			}
			return nil
		},
	})
}
