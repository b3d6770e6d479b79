package seed_test

import (
	"context"
	"testing"

	"github.com/amrherek/OJO-DynamicDiscount/internal/seed"
	"github.com/amrherek/OJO-DynamicDiscount/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureProcessRegistryIsIdempotent(t *testing.T) {
	db := testutil.OpenSQLite(t)
	ctx := context.Background()

	require.NoError(t, seed.EnsureProcessRegistry(ctx, db, "dyn_disc_eu"))
	require.NoError(t, db.Exec(`UPDATE dyn_disc_process SET process_id = 'run-1' WHERE component = 'dyn_disc_eu'`).Error)
	require.NoError(t, seed.EnsureProcessRegistry(ctx, db, "dyn_disc_eu"))

	var owner string
	require.NoError(t, db.Raw(`SELECT process_id FROM dyn_disc_process WHERE component = 'dyn_disc_eu'`).Scan(&owner).Error)
	assert.Equal(t, "run-1", owner)
}

func TestEnsureProcessRegistryRejectsBlankComponent(t *testing.T) {
	db := testutil.OpenSQLite(t)
	assert.Error(t, seed.EnsureProcessRegistry(context.Background(), db, "  "))
	assert.Error(t, seed.EnsureProcessRegistry(context.Background(), nil, "dyn_disc"))
}

func TestReleaseStaleOwner(t *testing.T) {
	db := testutil.OpenSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Exec(`UPDATE dyn_disc_process SET process_id = 'crashed' WHERE component = 'dyn_disc'`).Error)

	owner, err := seed.ReleaseStaleOwner(ctx, db, "dyn_disc")
	require.NoError(t, err)
	assert.Equal(t, "crashed", owner)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM dyn_disc_process WHERE component = 'dyn_disc' AND process_id IS NULL`).Scan(&count).Error)
	assert.EqualValues(t, 1, count)
}
