package repository

import (
	"context"
	"testing"

	"github.com/amrherek/OJO-DynamicDiscount/internal/testutil"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discType struct {
	DiscTypeID int64 `gorm:"column:disc_type_id;primaryKey"`
	Name       string
}

func (discType) TableName() string { return "ref_disc_type" }

func TestTableLoad(t *testing.T) {
	db := testutil.OpenSQLite(t)
	require.NoError(t, db.AutoMigrate(&discType{}))
	seed := []discType{{DiscTypeID: 3, Name: "c"}, {DiscTypeID: 1, Name: "a"}, {DiscTypeID: 2, Name: "b"}}
	require.NoError(t, db.Create(&seed).Error)

	ctx := context.Background()
	rows, err := For[discType](db).Load(ctx, option.OrderBy("disc_type_id"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0].DiscTypeID)
	assert.Equal(t, "c", rows[2].Name)

	rows, err = For[discType](db).Load(ctx, option.OrderBy("disc_type_id DESC"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0].DiscTypeID)
}

func TestTableLoadRequiresHandle(t *testing.T) {
	_, err := For[discType](nil).Load(context.Background())
	assert.Error(t, err)
}
