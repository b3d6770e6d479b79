package guard

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"gorm.io/gorm"
)

// DBRegistry keeps the owner in the process_id column of the component's
// dyn_disc_process row. The row itself is seeded by migrations.
type DBRegistry struct {
	db        *gorm.DB
	clock     clock.Clock
	component string
}

func NewDBRegistry(db *gorm.DB, clk clock.Clock, component string) (*DBRegistry, error) {
	component = strings.TrimSpace(component)
	if db == nil || clk == nil || component == "" {
		return nil, ErrInvalidConfig
	}
	return &DBRegistry{db: db, clock: clk, component: component}, nil
}

func (r *DBRegistry) Claim(ctx context.Context, owner string) (bool, error) {
	if strings.TrimSpace(owner) == "" {
		return false, ErrInvalidConfig
	}
	res := r.db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_process
		SET process_id = ?, claimed_at = ?
		WHERE component = ? AND process_id IS NULL`,
		owner, r.clock.Now(), r.component,
	)
	if res.Error != nil {
		return false, fmt.Errorf("claim %s: %w", r.component, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *DBRegistry) ActiveOwner(ctx context.Context) (string, error) {
	var row struct {
		ProcessID sql.NullString
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT process_id FROM dyn_disc_process WHERE component = ?`,
		r.component,
	).Scan(&row).Error
	if err != nil {
		return "", fmt.Errorf("read %s owner: %w", r.component, err)
	}
	if !row.ProcessID.Valid {
		return "", nil
	}
	return row.ProcessID.String, nil
}

func (r *DBRegistry) Release(ctx context.Context, owner string) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_process
		SET process_id = NULL, claimed_at = NULL
		WHERE component = ? AND process_id = ?`,
		r.component, owner,
	)
	if res.Error != nil {
		return fmt.Errorf("release %s: %w", r.component, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotOwner, owner)
	}
	return nil
}
