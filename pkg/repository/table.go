package repository

import (
	"context"
	"fmt"

	"github.com/amrherek/OJO-DynamicDiscount/pkg/db/option"
	"gorm.io/gorm"
)

// Table reads a whole reference table mapped by T. Discount configuration
// tables are small and read once per run, so there is no paging.
type Table[T any] struct {
	db *gorm.DB
}

func For[T any](db *gorm.DB) Table[T] {
	return Table[T]{db: db}
}

// Load returns every row of the table, narrowed and ordered by opts.
func (t Table[T]) Load(ctx context.Context, opts ...option.QueryOption) ([]*T, error) {
	if t.db == nil {
		return nil, fmt.Errorf("load %T: nil database handle", *new(T))
	}
	stmt := t.db.WithContext(ctx).Model(new(T))
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	var rows []*T
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
