package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service describes one row of contract_service_snapshot.
type Service struct {
	CoID      int64
	SnCode    int64
	Role      string
	Status    string
	ValidFrom time.Time
	Price     decimal.Decimal
}

// Subscriber seeds a customer on billCycle with one contract.
func Subscriber(t testing.TB, db *gorm.DB, customerID, coID, tmCode int64, prgCode, billCycle string, since time.Time) {
	t.Helper()
	mustExec(t, db, `INSERT INTO customer_all (customer_id, prgcode, lbc_date) VALUES (?, ?, ?)
		ON CONFLICT (customer_id) DO NOTHING`, customerID, prgCode, since)
	mustExec(t, db, `INSERT INTO contract_all (co_id, customer_id, tmcode) VALUES (?, ?, ?)`, coID, customerID, tmCode)
	mustExec(t, db, `INSERT INTO billcycle_assignment_history (customer_id, seqno, billcycle, valid_from)
		VALUES (?, 1, ?, ?) ON CONFLICT (customer_id, seqno) DO NOTHING`, customerID, billCycle, since)
}

func ServiceState(t testing.TB, db *gorm.DB, s Service) {
	t.Helper()
	mustExec(t, db, `INSERT INTO contract_service_snapshot (co_id, sncode, histno, service_role, status, valid_from, price)
		VALUES (?, ?, 1, ?, ?, ?, ?)`, s.CoID, s.SnCode, s.Role, s.Status, s.ValidFrom, s.Price)
}

func BillCycleTarget(t testing.TB, db *gorm.DB, billCycle string, target time.Time) {
	t.Helper()
	mustExec(t, db, `INSERT INTO billcycle_definition (billcycle, target_run_date) VALUES (?, ?)`, billCycle, target)
}

func mustExec(t testing.TB, db *gorm.DB, sql string, args ...any) {
	t.Helper()
	if err := db.Exec(sql, args...).Error; err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}
