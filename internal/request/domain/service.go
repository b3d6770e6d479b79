package domain

import (
	"context"
	"time"
)

// Registrar creates, resumes and finalizes requests.
type Registrar interface {
	FetchOngoing(ctx context.Context) (*Request, error)
	FetchByID(ctx context.Context, requestID int64) (*Request, error)
	FetchCutoffDate(ctx context.Context, billCycle string) (time.Time, error)
	RegisterNew(ctx context.Context, billCycle string, cutoff time.Time) (*Registration, error)
	ResetFailed(ctx context.Context, requestID int64) (int, error)
	Finalize(ctx context.Context, requestID int64) (RequestStatus, error)
}

// Registration is the outcome of registering a new request.
type Registration struct {
	Request   Request
	Contracts int
	Packages  int
}
