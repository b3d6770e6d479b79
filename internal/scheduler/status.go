package scheduler

import (
	"context"
	"fmt"
	"runtime"

	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
)

var packageStatuses = []requestdomain.PackageStatus{
	requestdomain.PackageStatusInitial,
	requestdomain.PackageStatusWorking,
	requestdomain.PackageStatusDone,
	requestdomain.PackageStatusFailed,
}

// Status is one sample taken by the status job.
type Status struct {
	Goroutines  int
	HeapAllocMB uint64
	HeapSysMB   uint64
	NumGC       uint32

	OpenConns    int
	InUseConns   int
	IdleConns    int
	WaitCount    int64
	MaxOpenConns int

	ActiveOwner string

	// Zero when no request is working.
	RequestID int64
	Packages  map[requestdomain.PackageStatus]int64
}

func (s *Scheduler) Collect(ctx context.Context) (Status, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	status := Status{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: mem.HeapAlloc >> 20,
		HeapSysMB:   mem.HeapSys >> 20,
		NumGC:       mem.NumGC,
		Packages:    make(map[requestdomain.PackageStatus]int64, len(packageStatuses)),
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return Status{}, fmt.Errorf("database handle: %w", err)
	}
	stats := sqlDB.Stats()
	status.OpenConns = stats.OpenConnections
	status.InUseConns = stats.InUse
	status.IdleConns = stats.Idle
	status.WaitCount = stats.WaitCount
	status.MaxOpenConns = stats.MaxOpenConnections

	owner, err := s.guard.ActiveOwner(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("guard owner: %w", err)
	}
	status.ActiveOwner = owner

	working, err := s.requestRepo.FindRequestsByStatus(ctx, s.db, requestdomain.RequestStatusWorking)
	if err != nil {
		return Status{}, fmt.Errorf("working request: %w", err)
	}
	if len(working) == 0 {
		return status, nil
	}
	status.RequestID = working[0].RequestID
	for _, st := range packageStatuses {
		n, err := s.requestRepo.CountPackagesByStatus(ctx, s.db, status.RequestID, st)
		if err != nil {
			return Status{}, fmt.Errorf("count %s packages: %w", st, err)
		}
		status.Packages[st] = n
	}
	return status, nil
}
