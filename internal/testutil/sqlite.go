// Package testutil opens throwaway sqlite databases carrying the discount schema.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	discountdomain "github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
)

var seq atomic.Int64

// billing-system mirror tables read by the eligibility and candidate queries,
// plus the tables owned by the process registry and the OCC table adjuster.
var mirrorTables = []string{
	`CREATE TABLE customer_all (
		customer_id INTEGER PRIMARY KEY,
		prgcode TEXT,
		lbc_date DATETIME
	)`,
	`CREATE TABLE contract_all (
		co_id INTEGER PRIMARY KEY,
		customer_id INTEGER,
		tmcode INTEGER
	)`,
	`CREATE TABLE billcycle_assignment_history (
		customer_id INTEGER,
		seqno INTEGER,
		billcycle TEXT,
		valid_from DATETIME,
		PRIMARY KEY (customer_id, seqno)
	)`,
	`CREATE TABLE contract_service_snapshot (
		co_id INTEGER,
		sncode INTEGER,
		histno INTEGER,
		service_role TEXT,
		status TEXT,
		valid_from DATETIME,
		price NUMERIC,
		PRIMARY KEY (co_id, sncode, histno)
	)`,
	`CREATE TABLE dyn_disc_process (
		component TEXT PRIMARY KEY,
		process_id TEXT,
		claimed_at DATETIME
	)`,
	`INSERT INTO dyn_disc_process (component, process_id) VALUES ('dyn_disc', NULL)`,
	`CREATE TABLE occ_adjustment (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER,
		co_id INTEGER,
		effective_date DATETIME,
		amount NUMERIC,
		remark TEXT,
		glcode TEXT,
		sncode INTEGER,
		tmcode INTEGER,
		valid_from DATETIME,
		username TEXT,
		created_at DATETIME
	)`,
}

// OpenSQLite returns a private in-memory database with every table migrated.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&requestdomain.Request{},
		&requestdomain.Package{},
		&requestdomain.Contract{},
		&requestdomain.Statistic{},
		&requestdomain.BillCycleDefinition{},
		&discountdomain.Conf{},
		&discountdomain.Offer{},
		&discountdomain.PriceGroupRule{},
		&discountdomain.FreeMonth{},
		&discountdomain.SpecialMonth{},
		&discountdomain.Type{},
		&discountdomain.Assignment{},
		&discountdomain.EvalHistory{},
		&discountdomain.GrantHistory{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	for _, stmt := range mirrorTables {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create mirror table: %v", err)
		}
	}
	return db
}
