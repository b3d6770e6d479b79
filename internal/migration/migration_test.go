package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(embeddedMigrations, down)
		assert.NoError(t, err, "missing down migration for %s", up)
	}
}

func TestSchemaCoversDiscountTables(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_dyn_disc_schema.up.sql")
	require.NoError(t, err)
	schema := string(raw)
	for _, table := range []string{
		"dyn_disc_request", "dyn_disc_package", "dyn_disc_contract", "dyn_disc_statistic",
		"dyn_disc_conf", "dyn_disc_offer", "dyn_disc_price_group", "dyn_disc_free_month",
		"dyn_disc_special_month", "dyn_disc_type", "dyn_disc_assign", "dyn_disc_eval_history",
		"dyn_disc_grant_history", "dyn_disc_process", "billcycle_definition", "occ_adjustment",
	} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestUpRequiresHandle(t *testing.T) {
	_, err := Up(nil)
	assert.Error(t, err)
}
