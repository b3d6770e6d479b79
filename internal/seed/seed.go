package seed

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// EnsureProcessRegistry makes sure the single-flight row for component
// exists with no owner. An existing row is left untouched so a running
// owner keeps its claim.
func EnsureProcessRegistry(ctx context.Context, db *gorm.DB, component string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	component = strings.TrimSpace(component)
	if component == "" {
		return errors.New("seed component is required")
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO dyn_disc_process (component, process_id, claimed_at)
		 VALUES (?, NULL, NULL)
		 ON CONFLICT (component) DO NOTHING`,
		component,
	).Error
}

// ReleaseStaleOwner clears the owner of component regardless of who holds it.
// Operators use it after a crash left the row claimed.
func ReleaseStaleOwner(ctx context.Context, db *gorm.DB, component string) (string, error) {
	if db == nil {
		return "", errors.New("seed database handle is required")
	}
	var owner string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []string
		if err := tx.Raw(
			`SELECT COALESCE(process_id, '') FROM dyn_disc_process WHERE component = ?`,
			component,
		).Scan(&rows).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			owner = rows[0]
		}
		return tx.Exec(
			`UPDATE dyn_disc_process SET process_id = NULL, claimed_at = NULL WHERE component = ?`,
			component,
		).Error
	})
	return owner, err
}
