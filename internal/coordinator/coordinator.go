package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/guard"
	obscontext "github.com/amrherek/OJO-DynamicDiscount/internal/observability/context"
	obslogger "github.com/amrherek/OJO-DynamicDiscount/internal/observability/logger"
	obsmetrics "github.com/amrherek/OJO-DynamicDiscount/internal/observability/metrics"
	"github.com/amrherek/OJO-DynamicDiscount/internal/observability/tracing"
	"github.com/amrherek/OJO-DynamicDiscount/internal/processing"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("invalid coordinator config")
	ErrInvalidMode   = errors.New("invalid processing mode")
	ErrInvalidInput  = errors.New("invalid processing input")
)

// Mode is the kind of run ProcessDiscounts performs.
type Mode string

const (
	ModeNew    Mode = "new"
	ModeResume Mode = "resume"
)

// ParseMode accepts new/c and resume/r in any case.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new", "c":
		return ModeNew, nil
	case "resume", "r":
		return ModeResume, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
}

// Action reports what a ProcessDiscounts call ended up doing.
type Action string

const (
	ActionProcessed Action = "processed"
	ActionSkipped   Action = "skipped"
	ActionRejected  Action = "rejected"
	ActionError     Action = "error"
)

type Result struct {
	Action    Action
	Mode      Mode
	RequestID int64
	Status    requestdomain.RequestStatus
	Summary   processing.Summary
	Reason    string
}

// SnapshotSource is the reference-data cache.
type SnapshotSource interface {
	Refresh(ctx context.Context) error
	Current(ctx context.Context) (*configcache.Snapshot, error)
}

// PackageProcessor runs the pending packages of a request.
type PackageProcessor interface {
	ProcessRequestPackages(ctx context.Context, req requestdomain.Request, snap *configcache.Snapshot) (processing.Summary, error)
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Node      *snowflake.Node
	Guard     guard.Registry
	Registrar requestdomain.Registrar
	Cache     SnapshotSource
	Processor PackageProcessor
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

// Coordinator is the single entry point of a discount run.
type Coordinator struct {
	log       *zap.Logger
	node      *snowflake.Node
	guard     guard.Registry
	registrar requestdomain.Registrar
	cache     SnapshotSource
	processor PackageProcessor
	metrics   *obsmetrics.ProcessingMetrics
	otel      *obsmetrics.Metrics
}

func New(p Params) (*Coordinator, error) {
	if p.Log == nil || p.Node == nil || p.Guard == nil || p.Registrar == nil || p.Cache == nil || p.Processor == nil {
		return nil, ErrInvalidConfig
	}
	return &Coordinator{
		log:       p.Log.Named("coordinator").With(zap.String("component", "coordinator")),
		node:      p.Node,
		guard:     p.Guard,
		registrar: p.Registrar,
		cache:     p.Cache,
		processor: p.Processor,
		metrics:   obsmetrics.Processing(),
		otel:      p.Metrics,
	}, nil
}

// ProcessDiscounts runs one discount cycle. mode "new" takes a bill cycle
// code, mode "resume" a request id. It never returns an error: failures are
// logged and reported through Result so the next trigger can retry.
func (c *Coordinator) ProcessDiscounts(ctx context.Context, rawMode, input string) (res Result) {
	started := time.Now()
	owner := c.node.Generate().String()
	ctx = obscontext.WithRunID(ctx, owner)
	ctx, span := tracing.Start(ctx, "coordinator.process_discounts",
		attribute.String("mode", rawMode),
		attribute.String("input", input),
	)
	log := obslogger.WithContext(ctx, c.log)

	defer func() {
		if r := recover(); r != nil {
			log.Error("coordinator.run.panic", zap.Any("panic", r))
			res = Result{Action: ActionError, Mode: res.Mode, RequestID: res.RequestID, Reason: fmt.Sprintf("panic: %v", r)}
		}
		c.metrics.IncRun(string(res.Mode), runOutcome(res.Action))
		c.metrics.ObserveRunDuration(string(res.Mode), time.Since(started))
		c.otel.RecordRun(ctx, string(res.Mode), string(res.Action), time.Since(started))
		var spanErr error
		if res.Action == ActionError {
			spanErr = errors.New(res.Reason)
		}
		tracing.End(span, spanErr)
		log.Info("coordinator.run.finish",
			zap.String("mode", string(res.Mode)),
			zap.String("action", string(res.Action)),
			zap.Int64("request_id", res.RequestID),
			zap.String("status", string(res.Status)),
			zap.String("reason", res.Reason),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	}()

	mode, err := ParseMode(rawMode)
	if err != nil {
		log.Error("coordinator.run.invalid_mode", zap.String("mode", rawMode), zap.Error(err))
		return Result{Action: ActionError, Reason: err.Error()}
	}

	claimed, err := c.guard.Claim(ctx, owner)
	if err != nil {
		log.Error("coordinator.guard.claim_failed", zap.Error(err))
		return Result{Action: ActionError, Mode: mode, Reason: err.Error()}
	}
	if !claimed {
		c.metrics.IncGuardRejection()
		active, _ := c.guard.ActiveOwner(ctx)
		log.Warn("coordinator.guard.busy", zap.String("active_owner", active))
		return Result{Action: ActionRejected, Mode: mode, Reason: "another run is in progress: " + active}
	}
	defer func() {
		if err := c.guard.Release(context.WithoutCancel(ctx), owner); err != nil {
			log.Error("coordinator.guard.release_failed", zap.Error(err))
		}
	}()

	log.Info("coordinator.run.start", zap.String("mode", string(mode)), zap.String("input", input))

	switch mode {
	case ModeNew:
		res, err = c.runNew(ctx, strings.TrimSpace(input))
	default:
		res, err = c.runResume(ctx, strings.TrimSpace(input))
	}
	res.Mode = mode
	if err != nil {
		log.Error("coordinator.run.failed", zap.Int64("request_id", res.RequestID), zap.Error(err))
		res.Action = ActionError
		res.Reason = err.Error()
	}
	return res
}

func (c *Coordinator) runNew(ctx context.Context, billCycle string) (Result, error) {
	ongoing, err := c.registrar.FetchOngoing(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch ongoing request: %w", err)
	}
	if ongoing != nil {
		return Result{
			Action:    ActionRejected,
			RequestID: ongoing.RequestID,
			Status:    ongoing.Status,
			Reason:    fmt.Sprintf("request %d is still running", ongoing.RequestID),
		}, nil
	}

	if err := requestdomain.ValidateBillCycle(billCycle); err != nil {
		return Result{}, err
	}
	ctx = obscontext.WithBillCycle(ctx, billCycle)

	cutoff, err := c.registrar.FetchCutoffDate(ctx, billCycle)
	if err != nil {
		return Result{}, err
	}
	if err := c.cache.Refresh(ctx); err != nil {
		return Result{}, fmt.Errorf("refresh discount config: %w", err)
	}

	reg, err := c.registrar.RegisterNew(ctx, billCycle, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("register request: %w", err)
	}
	if reg.Contracts == 0 {
		return Result{Action: ActionSkipped, Reason: "no eligible contracts"}, nil
	}

	return c.process(ctx, reg.Request)
}

func (c *Coordinator) runResume(ctx context.Context, input string) (Result, error) {
	requestID, err := strconv.ParseInt(input, 10, 64)
	if err != nil || requestID <= 0 {
		return Result{}, fmt.Errorf("%w: request id %q", ErrInvalidInput, input)
	}

	req, err := c.registrar.FetchByID(ctx, requestID)
	if err != nil {
		return Result{RequestID: requestID}, err
	}
	res := Result{RequestID: req.RequestID, Status: req.Status}

	switch req.Status {
	case requestdomain.RequestStatusWorking:
		res.Action = ActionRejected
		res.Reason = fmt.Sprintf("request %d is already running", requestID)
		return res, nil
	case requestdomain.RequestStatusDone:
		res.Action = ActionRejected
		res.Reason = fmt.Sprintf("request %d is already completed", requestID)
		return res, nil
	case requestdomain.RequestStatusFailed:
	default:
		return res, fmt.Errorf("request %d has unexpected status %q", requestID, req.Status)
	}

	reset, err := c.registrar.ResetFailed(ctx, requestID)
	if err != nil {
		return res, fmt.Errorf("reset request %d: %w", requestID, err)
	}
	if reset == 0 {
		res.Action = ActionSkipped
		res.Reason = "no failed or pending contracts"
		return res, nil
	}

	req.Status = requestdomain.RequestStatusWorking
	return c.process(ctx, *req)
}

// process runs the packages and always finalizes the request afterwards.
func (c *Coordinator) process(ctx context.Context, req requestdomain.Request) (Result, error) {
	ctx = obscontext.WithRequestID(ctx, strconv.FormatInt(req.RequestID, 10))
	ctx = obscontext.WithBillCycle(ctx, req.BillCycle)
	res := Result{RequestID: req.RequestID, Status: req.Status}

	snap, err := c.cache.Current(ctx)
	var procErr error
	if err != nil {
		procErr = fmt.Errorf("load discount config: %w", err)
	} else {
		res.Summary, procErr = c.processor.ProcessRequestPackages(ctx, req, snap)
	}

	status, finErr := c.registrar.Finalize(ctx, req.RequestID)
	if finErr != nil {
		return res, errors.Join(procErr, fmt.Errorf("finalize request %d: %w", req.RequestID, finErr))
	}
	res.Status = status
	if procErr != nil {
		return res, procErr
	}
	res.Action = ActionProcessed
	return res, nil
}

func runOutcome(a Action) string {
	switch a {
	case ActionProcessed:
		return obsmetrics.RunOutcomeProcessed
	case ActionSkipped:
		return obsmetrics.RunOutcomeSkipped
	case ActionRejected:
		return obsmetrics.RunOutcomeRejected
	}
	return obsmetrics.RunOutcomeError
}
