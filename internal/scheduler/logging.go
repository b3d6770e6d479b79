package scheduler

import (
	"context"
	"time"

	obscontext "github.com/amrherek/OJO-DynamicDiscount/internal/observability/context"
	obslogger "github.com/amrherek/OJO-DynamicDiscount/internal/observability/logger"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"go.uber.org/zap"
)

type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
}

func (s *Scheduler) startJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = obscontext.WithRunID(ctx, run.runID)
	s.logger(ctx).Debug("scheduler.job.start", zap.String("job", job))
	return ctx, run
}

func (s *Scheduler) finishJobRun(ctx context.Context, run *jobRun, err error) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
	}
	if err != nil {
		s.logger(ctx).Warn("scheduler.job.finish", append(fields, zap.Error(err))...)
		return
	}
	s.logger(ctx).Debug("scheduler.job.finish", fields...)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logStatus(ctx context.Context, st Status) {
	fields := []zap.Field{
		zap.Int("goroutines", st.Goroutines),
		zap.Uint64("heap_alloc_mb", st.HeapAllocMB),
		zap.Uint64("heap_sys_mb", st.HeapSysMB),
		zap.Uint32("num_gc", st.NumGC),
		zap.Int("db_open", st.OpenConns),
		zap.Int("db_in_use", st.InUseConns),
		zap.Int("db_idle", st.IdleConns),
		zap.Int64("db_wait_count", st.WaitCount),
		zap.Int("db_max_open", st.MaxOpenConns),
		zap.String("active_owner", st.ActiveOwner),
	}
	if st.RequestID != 0 {
		fields = append(fields,
			zap.Int64("request_id", st.RequestID),
			zap.Int64("packages_pending", st.Packages[requestdomain.PackageStatusInitial]),
			zap.Int64("packages_working", st.Packages[requestdomain.PackageStatusWorking]),
			zap.Int64("packages_done", st.Packages[requestdomain.PackageStatusDone]),
			zap.Int64("packages_failed", st.Packages[requestdomain.PackageStatusFailed]),
		)
	}
	s.logger(ctx).Info("scheduler.system_status", fields...)
}
