package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/guard"
	obsmetrics "github.com/amrherek/OJO-DynamicDiscount/internal/observability/metrics"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid scheduler config")

const jobSystemStatus = "system_status"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Guard       guard.Registry
	RequestRepo requestdomain.Repository
	Config      Config `optional:"true"`
}

// Scheduler periodically reports the health of the process: runtime,
// connection pool, guard owner and the progress of the working request.
type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	guard       guard.Registry
	requestRepo requestdomain.Repository
	metrics     *obsmetrics.ProcessingMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.GenID == nil || p.Guard == nil || p.RequestRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		guard:       p.Guard,
		requestRepo: p.RequestRepo,
		metrics:     obsmetrics.Processing(),
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	err := fn(ctx)
	s.finishJobRun(ctx, run, err)
	if err == nil {
		s.metrics.IncJobRun(name, "ok")
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobRun(name, "timeout")
		s.logger(ctx).Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	s.metrics.IncJobRun(name, "error")
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, jobSystemStatus, s.cfg.JobTimeout, s.SystemStatusJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SystemStatusJob samples the process and logs one status line.
func (s *Scheduler) SystemStatusJob(ctx context.Context) error {
	status, err := s.Collect(ctx)
	if err != nil {
		return err
	}
	for _, st := range packageStatuses {
		s.metrics.SetPackageBacklog(string(st), status.Packages[st])
	}
	s.logStatus(ctx, status)
	return nil
}
