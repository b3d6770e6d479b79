package processing

import (
	"context"
	"sync/atomic"
	"time"

	obslogger "github.com/amrherek/OJO-DynamicDiscount/internal/observability/logger"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"go.uber.org/zap"
)

// requestRun accumulates counters of one ProcessRequestPackages call. Chunk
// workers update it concurrently.
type requestRun struct {
	requestID int64
	startedAt time.Time

	packages  atomic.Int64
	failed    atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64
	errors    atomic.Int64
}

func (r *requestRun) countContract(status requestdomain.ContractStatus) {
	switch status {
	case requestdomain.ContractStatusProcessed:
		r.processed.Add(1)
	case requestdomain.ContractStatusSkipped:
		r.skipped.Add(1)
	case requestdomain.ContractStatusFailed:
		r.errors.Add(1)
	}
}

// Summary reports what a ProcessRequestPackages call did.
type Summary struct {
	Packages       int
	FailedPackages int
	Processed      int
	Skipped        int
	Failed         int
	Duration       time.Duration
}

func (r *requestRun) summary(now time.Time) Summary {
	return Summary{
		Packages:       int(r.packages.Load()),
		FailedPackages: int(r.failed.Load()),
		Processed:      int(r.processed.Load()),
		Skipped:        int(r.skipped.Load()),
		Failed:         int(r.errors.Load()),
		Duration:       now.Sub(r.startedAt),
	}
}

func (b *BatchProcessor) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, b.log)
}

func (b *BatchProcessor) logRunStart(ctx context.Context, run *requestRun, packageCount int, cfg Config) {
	b.logger(ctx).Info("processing.request.start",
		zap.Int64("request_id", run.requestID),
		zap.Int("package_count", packageCount),
		zap.Int("max_concurrent_packages", cfg.MaxConcurrentPackages),
		zap.Int("max_concurrent_chunks", cfg.MaxConcurrentChunks),
		zap.Int("contracts_per_chunk", cfg.ContractsPerChunk),
	)
}

func (b *BatchProcessor) logRunFinish(ctx context.Context, requestID int64, s Summary) {
	fields := []zap.Field{
		zap.Int64("request_id", requestID),
		zap.Int64("duration_ms", s.Duration.Milliseconds()),
		zap.Int("package_count", s.Packages),
		zap.Int("failed_package_count", s.FailedPackages),
		zap.Int("processed_count", s.Processed),
		zap.Int("skipped_count", s.Skipped),
		zap.Int("error_count", s.Failed),
	}
	log := b.logger(ctx)
	if s.Failed > 0 || s.FailedPackages > 0 {
		log.Warn("processing.request.finish", fields...)
		return
	}
	log.Info("processing.request.finish", fields...)
}

func (b *BatchProcessor) logPackageError(ctx context.Context, key requestdomain.PackageKey, msg string, err error) {
	b.logger(ctx).Error(msg,
		zap.Int64("request_id", key.RequestID),
		zap.Int("pack_id", key.PackID),
		zap.Error(err),
	)
}
