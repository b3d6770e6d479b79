package repository

import (
	"context"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// FindCandidatesByPackage joins the active assignments of the package's
// pending contracts with the latest offer and ALO service state on or
// before the cutoff. Active or suspended services win over other states.
func (r *repo) FindCandidatesByPackage(ctx context.Context, db *gorm.DB, key requestdomain.PackageKey, cutoff time.Time) ([]domain.Candidate, error) {
	var items []domain.Candidate
	err := db.WithContext(ctx).Raw(
		`WITH valid_assigns AS (
		   SELECT d.assign_id, d.assign_date, d.disc_sncode, d.disc_id,
		          COALESCE(d.apply_count, 0) AS apply_count, d.ovw_apply_count,
		          d.customer_id, d.co_id,
		          c.lbc_date, c.prgcode, c.tmcode, c.request_id
		   FROM dyn_disc_assign d
		   JOIN dyn_disc_contract c
		     ON c.co_id = d.co_id
		    AND c.request_id = ?
		    AND c.pack_id = ?
		    AND c.status = 'I'
		   WHERE d.assign_date < ?
		     AND (d.delete_date IS NULL OR d.delete_date >= ?)
		     AND (d.expire_date IS NULL OR d.expire_date >= ?)
		     AND (d.last_applied_date IS NULL OR d.last_applied_date < ?)
		 ),
		 offer_ranked AS (
		   SELECT s.co_id, s.sncode, s.status, s.valid_from, s.price,
		          ROW_NUMBER() OVER (
		            PARTITION BY s.co_id
		            ORDER BY CASE WHEN s.status IN ('A', 'S') THEN 1 ELSE 2 END,
		                     s.valid_from DESC, s.histno DESC
		          ) AS rn
		   FROM contract_service_snapshot s
		   WHERE s.service_role = 'O'
		     AND s.valid_from <= ?
		     AND EXISTS (SELECT 1 FROM valid_assigns va WHERE va.co_id = s.co_id)
		 ),
		 alo_ranked AS (
		   SELECT s.co_id, s.sncode, s.status, s.valid_from, s.price,
		          ROW_NUMBER() OVER (
		            PARTITION BY s.co_id
		            ORDER BY CASE WHEN s.status IN ('A', 'S') THEN 1
		                          WHEN s.status = 'D' THEN 2
		                          ELSE 3 END,
		                     s.valid_from DESC, s.histno DESC
		          ) AS rn
		   FROM contract_service_snapshot s
		   WHERE s.service_role = 'A'
		     AND s.valid_from <= ?
		     AND EXISTS (SELECT 1 FROM valid_assigns va WHERE va.co_id = s.co_id)
		 )
		 SELECT va.request_id, va.assign_id, va.assign_date, va.disc_sncode, va.disc_id,
		        va.apply_count, va.ovw_apply_count, va.customer_id, va.co_id,
		        va.lbc_date, va.prgcode, va.tmcode,
		        o.sncode AS offer_sncode, o.valid_from AS offer_valid_from,
		        o.status AS offer_status, o.price AS offer_price,
		        a.sncode AS alo_sncode, a.valid_from AS alo_valid_from,
		        a.status AS alo_status, a.price AS alo_price
		 FROM valid_assigns va
		 JOIN offer_ranked o ON o.co_id = va.co_id AND o.rn = 1
		 LEFT JOIN alo_ranked a ON a.co_id = va.co_id AND a.rn = 1
		 ORDER BY va.co_id, va.assign_id`,
		key.RequestID, key.PackID,
		cutoff, cutoff, cutoff, cutoff,
		cutoff, cutoff,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkAssignmentApplied(ctx context.Context, db *gorm.DB, assignID int64, appliedAt time.Time, applyCount int, expireDate *time.Time) (int64, error) {
	stmt := `UPDATE dyn_disc_assign SET last_applied_date = ?, apply_count = ? WHERE assign_id = ?`
	args := []any{appliedAt, applyCount, assignID}
	if expireDate != nil {
		stmt = `UPDATE dyn_disc_assign SET last_applied_date = ?, apply_count = ?, expire_date = ? WHERE assign_id = ?`
		args = []any{appliedAt, applyCount, *expireDate, assignID}
	}
	result := db.WithContext(ctx).Exec(stmt, args...)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertEvalHistory(ctx context.Context, db *gorm.DB, eval *domain.EvalHistory) error {
	return db.WithContext(ctx).Create(eval).Error
}

func (r *repo) InsertGrantHistory(ctx context.Context, db *gorm.DB, grant *domain.GrantHistory) error {
	return db.WithContext(ctx).Create(grant).Error
}
