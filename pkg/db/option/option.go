package option

import "gorm.io/gorm"

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryFunc func(*gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// OrderBy appends an ORDER BY clause, e.g. "disc_id, offer_id".
func OrderBy(clause string) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(clause)
	})
}
