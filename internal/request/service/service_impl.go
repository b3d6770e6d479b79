package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
	Tuning *config.TuningHolder
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   domain.Repository
	tuning *config.TuningHolder
}

func New(p Params) (domain.Registrar, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Repo == nil || p.Tuning == nil {
		return nil, domain.ErrInvalidConfig
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("request.service").With(zap.String("component", "registrar")),
		clock:  p.Clock,
		repo:   p.Repo,
		tuning: p.Tuning,
	}, nil
}

// FetchOngoing returns the working request, or nil when none is running.
func (s *Service) FetchOngoing(ctx context.Context) (*domain.Request, error) {
	items, err := s.repo.FindRequestsByStatus(ctx, s.db, domain.RequestStatusWorking)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (s *Service) FetchByID(ctx context.Context, requestID int64) (*domain.Request, error) {
	req, err := s.repo.FindRequestByID(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %d: %w", requestID, domain.ErrRequestNotFound)
	}
	return req, nil
}

// FetchCutoffDate returns the billing-period end of billCycle. It must
// already have passed.
func (s *Service) FetchCutoffDate(ctx context.Context, billCycle string) (time.Time, error) {
	if err := domain.ValidateBillCycle(billCycle); err != nil {
		return time.Time{}, err
	}
	cutoff, err := s.repo.FindCutoffDate(ctx, s.db, billCycle)
	if err != nil {
		return time.Time{}, err
	}
	if cutoff == nil {
		return time.Time{}, fmt.Errorf("bill cycle %s: %w", billCycle, domain.ErrNoCutoffDate)
	}
	if cutoff.After(s.clock.Now()) {
		return time.Time{}, fmt.Errorf("bill cycle %s cutoff %s: %w", billCycle, cutoff.Format(time.DateOnly), domain.ErrCutoffInFuture)
	}
	return *cutoff, nil
}

// RegisterNew creates a working request with its packages and contracts in
// one transaction. When nothing is eligible no request is created and the
// registration reports zero contracts.
func (s *Service) RegisterNew(ctx context.Context, billCycle string, cutoff time.Time) (*domain.Registration, error) {
	eligible, err := s.repo.FindEligibleContracts(ctx, s.db, cutoff, billCycle)
	if err != nil {
		return nil, fmt.Errorf("find eligible contracts: %w", err)
	}
	eligible = dedupeByContract(eligible)
	if len(eligible) == 0 {
		s.log.Info("registrar.request.nothing_eligible",
			zap.String("bill_cycle", billCycle),
			zap.Time("cutoff", cutoff),
		)
		return &domain.Registration{}, nil
	}

	packageSize := s.tuning.Get().PackageSize
	now := s.clock.Now()
	var reg domain.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requestID, err := s.repo.NextRequestID(ctx, tx)
		if err != nil {
			return err
		}
		req := domain.Request{
			RequestID:         requestID,
			Status:            domain.RequestStatusWorking,
			StartDate:         now,
			StatusDate:        &now,
			BillCycle:         billCycle,
			BillPeriodEndDate: cutoff,
		}
		if err := s.repo.InsertRequest(ctx, tx, &req); err != nil {
			return err
		}

		contracts := make([]domain.Contract, len(eligible))
		for i, e := range eligible {
			contracts[i] = domain.Contract{
				RequestID:  requestID,
				CustomerID: e.CustomerID,
				CoID:       e.CoID,
				LbcDate:    e.LbcDate,
				PrgCode:    e.PrgCode,
				TmCode:     e.TmCode,
				Status:     domain.ContractStatusInitial,
			}
		}
		packages := shard(requestID, contracts, packageSize, 1, now)
		if err := s.repo.InsertPackages(ctx, tx, packages); err != nil {
			return err
		}
		if err := s.repo.InsertContracts(ctx, tx, contracts); err != nil {
			return err
		}

		reg = domain.Registration{Request: req, Contracts: len(contracts), Packages: len(packages)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register request: %w", err)
	}

	s.log.Info("registrar.request.created",
		zap.Int64("request_id", reg.Request.RequestID),
		zap.String("bill_cycle", billCycle),
		zap.Int("contract_count", reg.Contracts),
		zap.Int("package_count", reg.Packages),
	)
	return &reg, nil
}

// ResetFailed puts every F or I contract of requestID back to I in fresh
// packages numbered after the highest existing one, closes the old
// unfinished packages and sets the request back to W. It changes nothing
// and returns zero when no contract qualifies.
func (s *Service) ResetFailed(ctx context.Context, requestID int64) (int, error) {
	packageSize := s.tuning.Get().PackageSize
	now := s.clock.Now()
	var reset, packs int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contracts, err := s.repo.FindResettableContracts(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if len(contracts) == 0 {
			return nil
		}
		maxPackID, err := s.repo.MaxPackID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if _, err := s.repo.CloseOpenPackages(ctx, tx, requestID); err != nil {
			return err
		}

		packages := shard(requestID, contracts, packageSize, maxPackID+1, now)
		if err := s.repo.InsertPackages(ctx, tx, packages); err != nil {
			return err
		}
		byPackage := make(map[int][]int64, len(packages))
		for _, c := range contracts {
			byPackage[c.PackID] = append(byPackage[c.PackID], c.CoID)
		}
		for _, pkg := range packages {
			if _, err := s.repo.MoveContractsToPackage(ctx, tx, requestID, pkg.PackID, byPackage[pkg.PackID]); err != nil {
				return err
			}
		}

		rows, err := s.repo.UpdateRequestStatus(ctx, tx, requestID, domain.RequestStatusWorking, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("request %d: %w", requestID, domain.ErrRequestNotFound)
		}
		reset, packs = len(contracts), len(packages)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reset request %d: %w", requestID, err)
	}

	s.log.Info("registrar.request.reset",
		zap.Int64("request_id", requestID),
		zap.Int("contract_count", reset),
		zap.Int("package_count", packs),
	)
	return reset, nil
}

// Finalize rolls the contract and package states up into the request
// status and stores the run statistic.
func (s *Service) Finalize(ctx context.Context, requestID int64) (domain.RequestStatus, error) {
	req, err := s.FetchByID(ctx, requestID)
	if err != nil {
		return "", err
	}

	failedContracts, err := s.repo.CountContractsByStatus(ctx, s.db, requestID, domain.ContractStatusFailed)
	if err != nil {
		return "", err
	}
	pendingContracts, err := s.repo.CountContractsByStatus(ctx, s.db, requestID, domain.ContractStatusInitial)
	if err != nil {
		return "", err
	}
	failedPackages, err := s.repo.CountPackagesByStatus(ctx, s.db, requestID, domain.PackageStatusFailed)
	if err != nil {
		return "", err
	}

	status := domain.RequestStatusDone
	if failedContracts > 0 || pendingContracts > 0 || failedPackages > 0 {
		status = domain.RequestStatusFailed
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateRequestStatus(ctx, tx, requestID, status, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("request %d: %w", requestID, domain.ErrRequestNotFound)
		}

		stat, err := s.repo.ComputeStatistic(ctx, tx, requestID)
		if err != nil {
			return err
		}
		stat.StartDate = req.StartDate
		if status == domain.RequestStatusDone {
			stat.EndDate = &now
		}
		return s.repo.SaveStatistic(ctx, tx, stat)
	})
	if err != nil {
		return "", fmt.Errorf("finalize request %d: %w", requestID, err)
	}

	s.log.Info("registrar.request.finalized",
		zap.Int64("request_id", requestID),
		zap.String("status", string(status)),
		zap.Int64("failed_contracts", failedContracts),
		zap.Int64("pending_contracts", pendingContracts),
		zap.Int64("failed_packages", failedPackages),
	)
	return status, nil
}

// dedupeByContract keeps the first row per contract and orders by contract id.
func dedupeByContract(items []domain.EligibleContract) []domain.EligibleContract {
	seen := make(map[int64]struct{}, len(items))
	out := make([]domain.EligibleContract, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.CoID]; ok {
			continue
		}
		seen[item.CoID] = struct{}{}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CoID < out[j].CoID })
	return out
}

// shard assigns contracts to consecutive packages of at most size contracts,
// numbered from firstPackID, and returns the package rows.
func shard(requestID int64, contracts []domain.Contract, size, firstPackID int, now time.Time) []domain.Package {
	if size <= 0 {
		size = len(contracts)
	}
	var packages []domain.Package
	for start := 0; start < len(contracts); start += size {
		end := min(start+size, len(contracts))
		packID := firstPackID + len(packages)
		for i := start; i < end; i++ {
			contracts[i].PackID = packID
		}
		packages = append(packages, domain.Package{
			RequestID:     requestID,
			PackID:        packID,
			Status:        domain.PackageStatusInitial,
			EntryDate:     now,
			ContractCount: end - start,
		})
	}
	return packages
}
