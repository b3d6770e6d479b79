package guard

import (
	"context"
	"errors"
)

var (
	ErrInvalidConfig = errors.New("invalid guard config")
	ErrNotOwner      = errors.New("guard is held by another owner")
)

// Registry grants at most one running owner at a time.
type Registry interface {
	// Claim takes the guard for owner. It reports false when someone else
	// holds it.
	Claim(ctx context.Context, owner string) (bool, error)
	// ActiveOwner returns the current holder, or "" when the guard is free.
	ActiveOwner(ctx context.Context) (string, error)
	// Release frees the guard if owner still holds it.
	Release(ctx context.Context, owner string) error
}
