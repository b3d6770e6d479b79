package domain

import (
	"context"
	"time"

	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"gorm.io/gorm"
)

type Repository interface {
	FindCandidatesByPackage(ctx context.Context, db *gorm.DB, key requestdomain.PackageKey, cutoff time.Time) ([]Candidate, error)
	MarkAssignmentApplied(ctx context.Context, db *gorm.DB, assignID int64, appliedAt time.Time, applyCount int, expireDate *time.Time) (int64, error)
	InsertEvalHistory(ctx context.Context, db *gorm.DB, eval *EvalHistory) error
	InsertGrantHistory(ctx context.Context, db *gorm.DB, grant *GrantHistory) error
}
