package repository

import (
	"context"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const requestColumns = `request_id, status, start_date, status_date, billcycle, bill_period_end_date`

func (r *repo) FindRequestsByStatus(ctx context.Context, db *gorm.DB, status domain.RequestStatus) ([]domain.Request, error) {
	var items []domain.Request
	err := db.WithContext(ctx).Raw(
		`SELECT `+requestColumns+`
		 FROM dyn_disc_request WHERE status = ?
		 ORDER BY request_id DESC`,
		status,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindRequestByID(ctx context.Context, db *gorm.DB, requestID int64) (*domain.Request, error) {
	var req domain.Request
	err := db.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM dyn_disc_request WHERE request_id = ?`,
		requestID,
	).Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.RequestID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) NextRequestID(ctx context.Context, db *gorm.DB) (int64, error) {
	var next int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(request_id), 0) + 1 FROM dyn_disc_request`,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repo) InsertRequest(ctx context.Context, db *gorm.DB, req *domain.Request) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dyn_disc_request (`+requestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.RequestID,
		req.Status,
		req.StartDate,
		req.StatusDate,
		req.BillCycle,
		req.BillPeriodEndDate,
	).Error
}

func (r *repo) UpdateRequestStatus(ctx context.Context, db *gorm.DB, requestID int64, status domain.RequestStatus, statusDate time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_request SET status = ?, status_date = ? WHERE request_id = ?`,
		status,
		statusDate,
		requestID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindCutoffDate(ctx context.Context, db *gorm.DB, billCycle string) (*time.Time, error) {
	var row struct {
		TargetRunDate *time.Time `gorm:"column:target_run_date"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT target_run_date FROM billcycle_definition WHERE billcycle = ?`,
		billCycle,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.TargetRunDate, nil
}

// FindEligibleContracts returns one row per contract holding at least one
// active assignment whose customer currently sits on billCycle.
func (r *repo) FindEligibleContracts(ctx context.Context, db *gorm.DB, cutoff time.Time, billCycle string) ([]domain.EligibleContract, error) {
	var items []domain.EligibleContract
	err := db.WithContext(ctx).Raw(
		`WITH active_assigns AS (
		   SELECT DISTINCT d.customer_id, d.co_id
		   FROM dyn_disc_assign d
		   WHERE d.assign_date < ?
		     AND (d.delete_date IS NULL OR d.delete_date >= ?)
		     AND (d.expire_date IS NULL OR d.expire_date >= ?)
		     AND (d.last_applied_date IS NULL OR d.last_applied_date < ?)
		 ),
		 cycle_ranked AS (
		   SELECT h.customer_id, h.billcycle,
		          ROW_NUMBER() OVER (
		            PARTITION BY h.customer_id
		            ORDER BY h.valid_from DESC, h.seqno DESC
		          ) AS rn
		   FROM billcycle_assignment_history h
		   WHERE h.valid_from <= ?
		     AND EXISTS (SELECT 1 FROM active_assigns a WHERE a.customer_id = h.customer_id)
		 )
		 SELECT a.customer_id, a.co_id, cu.lbc_date, cu.prgcode, co.tmcode
		 FROM active_assigns a
		 JOIN customer_all cu ON cu.customer_id = a.customer_id
		 JOIN contract_all co ON co.co_id = a.co_id
		 JOIN cycle_ranked cr ON cr.customer_id = a.customer_id AND cr.rn = 1
		 WHERE cr.billcycle = ?
		 ORDER BY a.co_id`,
		cutoff, cutoff, cutoff, cutoff, cutoff, billCycle,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertPackages(ctx context.Context, db *gorm.DB, packages []domain.Package) error {
	if len(packages) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(packages, 500).Error
}

func (r *repo) FindPackageIDsByStatus(ctx context.Context, db *gorm.DB, requestID int64, status domain.PackageStatus) ([]int, error) {
	var ids []int
	err := db.WithContext(ctx).Raw(
		`SELECT pack_id FROM dyn_disc_package
		 WHERE request_id = ? AND status = ?
		 ORDER BY pack_id`,
		requestID,
		status,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) MarkPackageStarted(ctx context.Context, db *gorm.DB, key domain.PackageKey, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_package SET status = ?, start_date = ?
		 WHERE request_id = ? AND pack_id = ?`,
		domain.PackageStatusWorking,
		at,
		key.RequestID,
		key.PackID,
	).Error
}

func (r *repo) MarkPackageFinished(ctx context.Context, db *gorm.DB, key domain.PackageKey, status domain.PackageStatus, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_package SET status = ?, end_date = ?
		 WHERE request_id = ? AND pack_id = ?`,
		status,
		at,
		key.RequestID,
		key.PackID,
	).Error
}

func (r *repo) CloseOpenPackages(ctx context.Context, db *gorm.DB, requestID int64) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_package SET status = ? WHERE request_id = ? AND status <> ?`,
		domain.PackageStatusDone,
		requestID,
		domain.PackageStatusDone,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MaxPackID(ctx context.Context, db *gorm.DB, requestID int64) (int, error) {
	var max int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(pack_id), 0) FROM dyn_disc_package WHERE request_id = ?`,
		requestID,
	).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *repo) CountPackagesByStatus(ctx context.Context, db *gorm.DB, requestID int64, status domain.PackageStatus) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM dyn_disc_package WHERE request_id = ? AND status = ?`,
		requestID,
		status,
	).Scan(&count).Error
	return count, err
}

const contractColumns = `request_id, pack_id, customer_id, co_id, lbc_date, prgcode, tmcode, status, remark`

func (r *repo) FindContractsByPackage(ctx context.Context, db *gorm.DB, key domain.PackageKey, status domain.ContractStatus) ([]domain.Contract, error) {
	var items []domain.Contract
	err := db.WithContext(ctx).Raw(
		`SELECT `+contractColumns+`
		 FROM dyn_disc_contract
		 WHERE request_id = ? AND pack_id = ? AND status = ?
		 ORDER BY co_id`,
		key.RequestID,
		key.PackID,
		status,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindResettableContracts(ctx context.Context, db *gorm.DB, requestID int64) ([]domain.Contract, error) {
	var items []domain.Contract
	err := db.WithContext(ctx).Raw(
		`SELECT `+contractColumns+`
		 FROM dyn_disc_contract
		 WHERE request_id = ? AND status IN (?, ?)
		 ORDER BY co_id`,
		requestID,
		domain.ContractStatusInitial,
		domain.ContractStatusFailed,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertContracts(ctx context.Context, db *gorm.DB, contracts []domain.Contract) error {
	if len(contracts) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(contracts, 500).Error
}

func (r *repo) MoveContractsToPackage(ctx context.Context, db *gorm.DB, requestID int64, packID int, coIDs []int64) (int64, error) {
	if len(coIDs) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_contract SET pack_id = ?, status = ?, remark = ''
		 WHERE request_id = ? AND co_id IN ?`,
		packID,
		domain.ContractStatusInitial,
		requestID,
		coIDs,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateContractOutcome(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_contract SET status = ?, remark = ?
		 WHERE request_id = ? AND pack_id = ? AND customer_id = ? AND co_id = ?`,
		contract.Status,
		contract.Remark,
		contract.RequestID,
		contract.PackID,
		contract.CustomerID,
		contract.CoID,
	).Error
}

func (r *repo) UpdateContractStatusAndRemark(ctx context.Context, db *gorm.DB, requestID, coID int64, status domain.ContractStatus, remark string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE dyn_disc_contract SET status = ?, remark = ?
		 WHERE request_id = ? AND co_id = ?`,
		status,
		remark,
		requestID,
		coID,
	).Error
}

func (r *repo) CountContractsByStatus(ctx context.Context, db *gorm.DB, requestID int64, status domain.ContractStatus) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM dyn_disc_contract WHERE request_id = ? AND status = ?`,
		requestID,
		status,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ComputeStatistic(ctx context.Context, db *gorm.DB, requestID int64) (*domain.Statistic, error) {
	var stat domain.Statistic
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(DISTINCT customer_id) AS cust_cnt,
		        COUNT(*) AS contr_cnt,
		        COALESCE(SUM(CASE WHEN status = 'P' THEN 1 ELSE 0 END), 0) AS contr_granted_cnt,
		        COALESCE(SUM(CASE WHEN status = 'S' THEN 1 ELSE 0 END), 0) AS contr_skipped_cnt
		 FROM dyn_disc_contract WHERE request_id = ?`,
		requestID,
	).Scan(&stat).Error
	if err != nil {
		return nil, err
	}
	stat.RequestID = requestID

	var occ struct {
		OfferOccCnt int64  `gorm:"column:offer_occ_cnt"`
		AloOccCnt   int64  `gorm:"column:alo_occ_cnt"`
		OfferOccAmt string `gorm:"column:offer_occ_amt"`
		AloOccAmt   string `gorm:"column:alo_occ_amt"`
	}
	err = db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(CASE WHEN offer_occ_created THEN 1 ELSE 0 END), 0) AS offer_occ_cnt,
		        COALESCE(SUM(CASE WHEN alo_occ_created THEN 1 ELSE 0 END), 0) AS alo_occ_cnt,
		        CAST(COALESCE(SUM(CASE WHEN offer_occ_created THEN offer_disc_amount ELSE 0 END), 0) AS VARCHAR(32)) AS offer_occ_amt,
		        CAST(COALESCE(SUM(CASE WHEN alo_occ_created THEN alo_disc_amount ELSE 0 END), 0) AS VARCHAR(32)) AS alo_occ_amt
		 FROM dyn_disc_grant_history WHERE request_id = ?`,
		requestID,
	).Scan(&occ).Error
	if err != nil {
		return nil, err
	}
	stat.OfferOccCnt = occ.OfferOccCnt
	stat.AloOccCnt = occ.AloOccCnt
	if stat.OfferOccAmt, err = parseAmount(occ.OfferOccAmt); err != nil {
		return nil, err
	}
	if stat.AloOccAmt, err = parseAmount(occ.AloOccAmt); err != nil {
		return nil, err
	}
	return &stat, nil
}

func (r *repo) SaveStatistic(ctx context.Context, db *gorm.DB, stat *domain.Statistic) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM dyn_disc_statistic WHERE request_id = ?`,
		stat.RequestID,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO dyn_disc_statistic (request_id, start_date, end_date, cust_cnt, contr_cnt,
		   contr_granted_cnt, contr_skipped_cnt, offer_occ_cnt, alo_occ_cnt, offer_occ_amt, alo_occ_amt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stat.RequestID,
		stat.StartDate,
		stat.EndDate,
		stat.CustCnt,
		stat.ContrCnt,
		stat.ContrGrantedCnt,
		stat.ContrSkippedCnt,
		stat.OfferOccCnt,
		stat.AloOccCnt,
		stat.OfferOccAmt,
		stat.AloOccAmt,
	).Error
}
