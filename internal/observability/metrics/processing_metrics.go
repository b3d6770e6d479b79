package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonDeadlock             = "deadlock"
	ReasonUniqueViolation      = "unique_violation"
	ReasonTransient            = "transient"
	ReasonUnknown              = "unknown"
)

const (
	RunOutcomeProcessed = "processed"
	RunOutcomeSkipped   = "skipped"
	RunOutcomeRejected  = "rejected"
	RunOutcomeError     = "error"
)

// ProcessingMetrics captures discount run health signals.
type ProcessingMetrics struct {
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	packages        *prometheus.CounterVec
	packageDuration prometheus.Observer
	contracts       *prometheus.CounterVec
	contractRetries prometheus.Counter
	contractErrors  *prometheus.CounterVec
	grants          *prometheus.CounterVec
	guardRejections prometheus.Counter
	packageBacklog  *prometheus.GaugeVec
	jobRuns         *prometheus.CounterVec
}

var (
	processingMetricsOnce sync.Once
	processingMetrics     *ProcessingMetrics
)

// Processing returns the singleton processing metrics registry.
func Processing() *ProcessingMetrics {
	return ProcessingWithConfig(Config{})
}

// ProcessingWithConfig returns the singleton processing metrics registry using config labels.
func ProcessingWithConfig(cfg Config) *ProcessingMetrics {
	processingMetricsOnce.Do(func() {
		processingMetrics = newProcessingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return processingMetrics
}

// ResetProcessingMetricsForTest swaps the singleton for one bound to registerer.
func ResetProcessingMetricsForTest(registerer prometheus.Registerer) *ProcessingMetrics {
	processingMetricsOnce = sync.Once{}
	processingMetrics = nil
	processingMetricsOnce.Do(func() {
		processingMetrics = newProcessingMetrics(registerer, Config{Environment: "test"})
	})
	return processingMetrics
}

func newProcessingMetrics(registerer prometheus.Registerer, cfg Config) *ProcessingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "dyndisc"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dyndisc_runs_total",
		Help:        "Discount runs by mode and outcome.",
		ConstLabels: constLabels,
	}, []string{"mode", "outcome"})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "dyndisc_run_duration_seconds",
		Help:        "Discount run latency from claim to finalize.",
		Buckets:     []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200, 14400},
		ConstLabels: constLabels,
	}, []string{"mode"})
	packages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dyndisc_packages_total",
		Help:        "Packages finished by final status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	packageDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "dyndisc_package_duration_seconds",
		Help:        "Package processing latency.",
		Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	})
	contracts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dyndisc_contracts_total",
		Help:        "Contracts processed by final status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	contractRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "dyndisc_contract_retries_total",
		Help:        "Contract pipeline retries after transient persistence errors.",
		ConstLabels: constLabels,
	})
	contractErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dyndisc_contract_errors_total",
		Help:        "Contract failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	grants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dyndisc_grants_total",
		Help:        "OCC grant attempts by discount type and outcome.",
		ConstLabels: constLabels,
	}, []string{"discount_type", "outcome"})
	guardRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "dyndisc_guard_rejections_total",
		Help:        "Runs refused because another process owns the single-flight guard.",
		ConstLabels: constLabels,
	})

	packageBacklog := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "dyndisc_ongoing_packages",
		Help:        "Packages of the working request by status, sampled by the status job.",
		ConstLabels: constLabels,
	}, []string{"status"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dyndisc_scheduler_job_runs_total",
		Help:        "Background job runs by job and outcome.",
		ConstLabels: constLabels,
	}, []string{"job", "outcome"})

	registerer.MustRegister(
		runs,
		runDuration,
		packages,
		packageDuration,
		contracts,
		contractRetries,
		contractErrors,
		grants,
		guardRejections,
		packageBacklog,
		jobRuns,
	)

	return &ProcessingMetrics{
		runs:            runs,
		runDuration:     runDuration,
		packages:        packages,
		packageDuration: packageDuration,
		contracts:       contracts,
		contractRetries: contractRetries,
		contractErrors:  contractErrors,
		grants:          grants,
		guardRejections: guardRejections,
		packageBacklog:  packageBacklog,
		jobRuns:         jobRuns,
	}
}

// IncRun counts a finished coordinator run.
func (m *ProcessingMetrics) IncRun(mode, outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(mode, outcome).Inc()
}

// ObserveRunDuration records coordinator run latency in seconds.
func (m *ProcessingMetrics) ObserveRunDuration(mode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// IncPackage counts a package reaching a final status.
func (m *ProcessingMetrics) IncPackage(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.packages.WithLabelValues(status).Inc()
	m.packageDuration.Observe(duration.Seconds())
}

// IncContract counts a contract reaching a final status.
func (m *ProcessingMetrics) IncContract(status string) {
	if m == nil {
		return
	}
	m.contracts.WithLabelValues(status).Inc()
}

func (m *ProcessingMetrics) IncContractRetry() {
	if m == nil {
		return
	}
	m.contractRetries.Inc()
}

// IncContractError counts a contract failure with classification.
func (m *ProcessingMetrics) IncContractError(err error) {
	if m == nil || err == nil {
		return
	}
	m.contractErrors.WithLabelValues(ClassifyReason(err)).Inc()
}

func (m *ProcessingMetrics) IncGrant(discountType, outcome string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(discountType, outcome).Inc()
}

func (m *ProcessingMetrics) IncGuardRejection() {
	if m == nil {
		return
	}
	m.guardRejections.Inc()
}

// SetPackageBacklog publishes how many packages of the working request sit
// in status.
func (m *ProcessingMetrics) SetPackageBacklog(status string, count int64) {
	if m == nil {
		return
	}
	m.packageBacklog.WithLabelValues(status).Set(float64(count))
}

func (m *ProcessingMetrics) IncJobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}

// ClassifyReason maps processing errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	switch db.SQLState(err) {
	case db.CodeLockNotAvailable:
		return ReasonDBLockTimeout
	case db.CodeSerializationFailure:
		return ReasonSerializationFailure
	case db.CodeDeadlockDetected:
		return ReasonDeadlock
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || db.IsDuplicateKeyErr(err) {
		return ReasonUniqueViolation
	}
	if db.IsTransientErr(err) {
		return ReasonTransient
	}
	return ReasonUnknown
}
