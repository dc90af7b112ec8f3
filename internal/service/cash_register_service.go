package service

import (
	"context"
	"errors"

	"eventpos/internal/apierror"
	"eventpos/internal/clock"
	"eventpos/internal/dto"
	"eventpos/internal/identity"
	"eventpos/internal/metrics"
	"eventpos/internal/model"
	"eventpos/internal/repository"
	"eventpos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// JobQueue receives best-effort work after a unit of work commits.
// *worker.Dispatcher implements it.
type JobQueue interface {
	EnqueueStockAlert(ctx context.Context, p worker.StockAlertPayload) error
	EnqueueClosureReport(ctx context.Context, p worker.ClosureReportPayload) error
}

type CashRegisterService interface {
	Create(ctx context.Context, req dto.CreateCashRegisterRequest) (*dto.CashRegisterResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateCashRegisterRequest) (*dto.CashRegisterResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Open(ctx context.Context, id uuid.UUID, req dto.OpenCashRegisterRequest) (*dto.CashRegisterResponse, error)
	Close(ctx context.Context, id uuid.UUID, req dto.CloseCashRegisterRequest) (*dto.ClosureResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.CashRegisterResponse, error)
	ListOpen(ctx context.Context, activityID *uuid.UUID) ([]dto.CashRegisterResponse, error)
	GetLastClosure(ctx context.Context, registerID uuid.UUID) (*dto.ClosureResponse, error)

	// RequireOpenTx is called by the sales engine inside its unit of work. It
	// share-locks the register so a concurrent Close waits for the sale.
	RequireOpenTx(ctx context.Context, tx *gorm.DB, registerID int64) (*model.CashRegister, error)
}

type cashRegisterService struct {
	tx        repository.TxRunner
	registers repository.CashRegisterRepository
	sales     repository.SalesTransactionRepository
	refs      repository.ReferenceRepository
	projector SalesSummaryProjector
	jobs      JobQueue
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func NewCashRegisterService(
	tx repository.TxRunner,
	registers repository.CashRegisterRepository,
	sales repository.SalesTransactionRepository,
	refs repository.ReferenceRepository,
	projector SalesSummaryProjector,
	jobs JobQueue,
	clk clock.Clock,
	m *metrics.Metrics,
) CashRegisterService {
	return &cashRegisterService{
		tx:        tx,
		registers: registers,
		sales:     sales,
		refs:      refs,
		projector: projector,
		jobs:      jobs,
		clock:     clk,
		metrics:   m,
	}
}

// ── Create / Update / Delete ─────────────────────────────────────────────────

func (s *cashRegisterService) Create(ctx context.Context, req dto.CreateCashRegisterRequest) (*dto.CashRegisterResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	activityID := identity.ToInternal(req.ActivityID)
	if _, err := s.refs.FindActivity(ctx, activityID); err != nil {
		return nil, finish("create_register", lookupErr(err, apierror.CodeActivityNotFound, "activity", activityID, identity.FamilyActivity))
	}
	if err := s.ensureNumberFree(ctx, activityID, req.RegisterNumber, 0); err != nil {
		return nil, finish("create_register", err)
	}

	reg := &model.CashRegister{
		ActivityID:     activityID,
		RegisterNumber: req.RegisterNumber,
		Name:           req.Name,
		IsOpen:         false,
	}
	if err := s.registers.Create(ctx, reg); err != nil {
		return nil, finish("create_register", err)
	}
	log.Info().Int64("register_id", reg.ID).Int("register_number", reg.RegisterNumber).Msg("cash register created")
	return registerToResponse(reg), nil
}

func (s *cashRegisterService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateCashRegisterRequest) (*dto.CashRegisterResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	regID := identity.ToInternal(id)

	var reg *model.CashRegister
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		reg, err = s.lockRegister(tx, regID)
		if err != nil {
			return err
		}
		if reg.IsOpen {
			return apierror.InvalidState(apierror.CodeInvalidState, "cash register cannot be edited while open")
		}
		if err := s.ensureNumberFree(ctx, reg.ActivityID, req.RegisterNumber, reg.ID); err != nil {
			return err
		}
		reg.RegisterNumber = req.RegisterNumber
		reg.Name = req.Name
		return s.registers.UpdateTx(tx, reg)
	})
	if err != nil {
		return nil, finish("update_register", err)
	}
	return registerToResponse(reg), nil
}

func (s *cashRegisterService) Delete(ctx context.Context, id uuid.UUID) error {
	regID := identity.ToInternal(id)
	reg, err := s.registers.FindByID(ctx, regID)
	if err != nil {
		return finish("delete_register", lookupErr(err, apierror.CodeRegisterNotFound, "cash register", regID, identity.FamilyCashRegister))
	}
	if reg.IsOpen {
		return apierror.InvalidState(apierror.CodeInvalidState, "cash register cannot be deleted while open")
	}
	count, err := s.sales.CountByRegister(ctx, regID)
	if err != nil {
		return finish("delete_register", err)
	}
	if count > 0 {
		return apierror.Conflict(apierror.CodeHasTransactions, "cash register has transactions").
			WithDetail("transactions", count)
	}
	if err := s.registers.Delete(ctx, regID); err != nil {
		return finish("delete_register", err)
	}
	log.Info().Int64("register_id", regID).Msg("cash register deleted")
	return nil
}

// ── Open ─────────────────────────────────────────────────────────────────────

func (s *cashRegisterService) Open(ctx context.Context, id uuid.UUID, req dto.OpenCashRegisterRequest) (*dto.CashRegisterResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	regID := identity.ToInternal(id)
	operatorID := identity.ToInternal(req.OperatorUserID)
	supervisorID := identity.OptionalInternal(req.SupervisorUserID)

	// Register state is reported ahead of the operator check; the locked
	// re-read below stays authoritative.
	current, err := s.registers.FindByID(ctx, regID)
	if err != nil {
		return nil, finish("open_register", lookupErr(err, apierror.CodeRegisterNotFound, "cash register", regID, identity.FamilyCashRegister))
	}
	if current.IsOpen {
		return nil, finish("open_register", apierror.InvalidState(apierror.CodeAlreadyOpen, "cash register is already open"))
	}

	if err := requireActiveUser(ctx, s.refs, operatorID); err != nil {
		return nil, finish("open_register", err)
	}
	if supervisorID != nil {
		if err := requireActiveUser(ctx, s.refs, *supervisorID); err != nil {
			return nil, finish("open_register", err)
		}
	}

	var reg *model.CashRegister
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		reg, err = s.lockRegister(tx, regID)
		if err != nil {
			return err
		}
		if reg.IsOpen {
			return apierror.InvalidState(apierror.CodeAlreadyOpen, "cash register is already open")
		}
		now := s.clock.Now()
		reg.IsOpen = true
		reg.OpenedAt = &now
		reg.ClosedAt = nil
		reg.OperatorUserID = &operatorID
		reg.SupervisorUserID = supervisorID
		return s.registers.UpdateTx(tx, reg)
	})
	if err != nil {
		return nil, finish("open_register", err)
	}

	s.metrics.RecordOpen()
	log.Info().Int64("register_id", reg.ID).Int64("operator_id", operatorID).Msg("cash register opened")
	return registerToResponse(reg), nil
}

// ── Close ────────────────────────────────────────────────────────────────────
// The closure row and the register flip commit together, under the register's
// exclusive lock. Sales hold a share lock on the register, so totals cannot
// move while they are being computed.

func (s *cashRegisterService) Close(ctx context.Context, id uuid.UUID, req dto.CloseCashRegisterRequest) (*dto.ClosureResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	defer s.metrics.TrackDBOperation("close_register")()

	regID := identity.ToInternal(id)
	closedBy := identity.ToInternal(req.ClosedBy)
	supervisorID := identity.OptionalInternal(req.SupervisedBy)

	if err := requireActiveUser(ctx, s.refs, closedBy); err != nil {
		return nil, finish("close_register", err)
	}
	if supervisorID != nil {
		if err := requireActiveUser(ctx, s.refs, *supervisorID); err != nil {
			return nil, finish("close_register", err)
		}
	}

	var closure *model.CashRegisterClosure
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		reg, err := s.lockRegister(tx, regID)
		if err != nil {
			return err
		}
		if !reg.IsOpen || reg.OpenedAt == nil {
			return apierror.InvalidState(apierror.CodeNotOpen, "cash register is not open")
		}

		totals, err := s.projector.RegisterTotalsTx(ctx, tx, regID, *reg.OpenedAt)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		cash := totals.Method(model.PaymentMethodCash)
		closure = &model.CashRegisterClosure{
			CashRegisterID:    regID,
			OpeningDate:       *reg.OpenedAt,
			ClosingDate:       now,
			TotalTransactions: totals.Transactions,
			TotalItemsSold:    totals.ItemsSold,
			TotalSalesAmount:  totals.SalesAmount,
			CashCalculated:    cash,
			CardsCalculated:   totals.Method(model.PaymentMethodCard),
			SinpeCalculated:   totals.Method(model.PaymentMethodSINPE),
			CashDeclared:      req.CashDeclared,
			CashDifference:    req.CashDeclared.Sub(cash),
			ClosedByUserID:    closedBy,
			SupervisorUserID:  supervisorID,
			Observations:      req.Observations,
			CreatedAt:         now,
		}
		if err := s.registers.CreateClosureTx(tx, closure); err != nil {
			return err
		}

		reg.IsOpen = false
		reg.ClosedAt = &now
		return s.registers.UpdateTx(tx, reg)
	})
	if err != nil {
		return nil, finish("close_register", err)
	}

	diff, _ := closure.CashDifference.Float64()
	s.metrics.RecordClosure(diff)
	log.Info().
		Int64("register_id", regID).
		Int64("closure_id", closure.ID).
		Int("transactions", closure.TotalTransactions).
		Str("total_sales", closure.TotalSalesAmount.StringFixed(2)).
		Str("cash_difference", closure.CashDifference.StringFixed(2)).
		Msg("cash register closed")

	// Best-effort: the closure is already committed
	if s.jobs != nil {
		if err := s.jobs.EnqueueClosureReport(ctx, worker.ClosureReportPayload{
			ClosureID:      closure.ID,
			CashRegisterID: regID,
		}); err != nil {
			log.Warn().Err(err).Int64("closure_id", closure.ID).Msg("closure report enqueue failed")
		}
	}

	return closureToResponse(closure), nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *cashRegisterService) Get(ctx context.Context, id uuid.UUID) (*dto.CashRegisterResponse, error) {
	regID := identity.ToInternal(id)
	reg, err := s.registers.FindByID(ctx, regID)
	if err != nil {
		return nil, finish("get_register", lookupErr(err, apierror.CodeRegisterNotFound, "cash register", regID, identity.FamilyCashRegister))
	}
	return registerToResponse(reg), nil
}

func (s *cashRegisterService) ListOpen(ctx context.Context, activityID *uuid.UUID) ([]dto.CashRegisterResponse, error) {
	regs, err := s.registers.ListOpen(ctx, identity.OptionalInternal(activityID))
	if err != nil {
		return nil, finish("list_open_registers", err)
	}
	out := make([]dto.CashRegisterResponse, 0, len(regs))
	for i := range regs {
		out = append(out, *registerToResponse(&regs[i]))
	}
	return out, nil
}

func (s *cashRegisterService) GetLastClosure(ctx context.Context, registerID uuid.UUID) (*dto.ClosureResponse, error) {
	regID := identity.ToInternal(registerID)
	if _, err := s.registers.FindByID(ctx, regID); err != nil {
		return nil, finish("get_last_closure", lookupErr(err, apierror.CodeRegisterNotFound, "cash register", regID, identity.FamilyCashRegister))
	}
	c, err := s.registers.FindLastClosure(ctx, regID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NotFound(apierror.CodeClosureNotFound, "closure", registerID)
	}
	if err != nil {
		return nil, finish("get_last_closure", err)
	}
	return closureToResponse(c), nil
}

func (s *cashRegisterService) RequireOpenTx(_ context.Context, tx *gorm.DB, registerID int64) (*model.CashRegister, error) {
	reg, err := s.registers.FindByIDForShareTx(tx, registerID)
	if err != nil {
		return nil, lookupErr(err, apierror.CodeRegisterNotFound, "cash register", registerID, identity.FamilyCashRegister)
	}
	if !reg.IsOpen {
		return nil, apierror.InvalidState(apierror.CodeNotOpen, "cash register is not open").
			WithDetail("cash_register_id", identity.ToExternal(registerID, identity.FamilyCashRegister))
	}
	return reg, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (s *cashRegisterService) lockRegister(tx *gorm.DB, id int64) (*model.CashRegister, error) {
	reg, err := s.registers.FindByIDForUpdateTx(tx, id)
	if err != nil {
		return nil, lookupErr(err, apierror.CodeRegisterNotFound, "cash register", id, identity.FamilyCashRegister)
	}
	return reg, nil
}

func (s *cashRegisterService) ensureNumberFree(ctx context.Context, activityID int64, number int, excludeID int64) error {
	taken, err := s.registers.NumberTaken(ctx, activityID, number, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Conflict(apierror.CodeDuplicateRegisterNumber, "register number already used in this activity").
			WithDetail("register_number", number)
	}
	return nil
}

// requireActiveUser fails with OperatorNotFound for a missing or inactive user.
func requireActiveUser(ctx context.Context, refs repository.ReferenceRepository, userID int64) error {
	u, err := refs.FindUser(ctx, userID)
	if err != nil {
		return lookupErr(err, apierror.CodeOperatorNotFound, "user", userID, identity.FamilyUser)
	}
	if !u.IsActive {
		return apierror.NotFound(apierror.CodeOperatorNotFound, "user", identity.ToExternal(userID, identity.FamilyUser)).
			WithDetail("inactive", true)
	}
	return nil
}
