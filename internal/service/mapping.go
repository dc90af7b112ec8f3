package service

// mapping.go is the only place internal int64 keys and external opaque ids
// meet. Services take and return dto types; repositories see int64 only.

import (
	"eventpos/internal/dto"
	"eventpos/internal/identity"
	"eventpos/internal/model"

	"github.com/shopspring/decimal"
)

func registerToResponse(r *model.CashRegister) *dto.CashRegisterResponse {
	return &dto.CashRegisterResponse{
		ID:               identity.ToExternal(r.ID, identity.FamilyCashRegister),
		ActivityID:       identity.ToExternal(r.ActivityID, identity.FamilyActivity),
		RegisterNumber:   r.RegisterNumber,
		Name:             r.Name,
		IsOpen:           r.IsOpen,
		OpenedAt:         r.OpenedAt,
		ClosedAt:         r.ClosedAt,
		OperatorUserID:   identity.OptionalExternal(r.OperatorUserID, identity.FamilyUser),
		SupervisorUserID: identity.OptionalExternal(r.SupervisorUserID, identity.FamilyUser),
	}
}

func closureToResponse(c *model.CashRegisterClosure) *dto.ClosureResponse {
	return &dto.ClosureResponse{
		ID:                identity.ToExternal(c.ID, identity.FamilyClosure),
		CashRegisterID:    identity.ToExternal(c.CashRegisterID, identity.FamilyCashRegister),
		OpeningDate:       c.OpeningDate,
		ClosingDate:       c.ClosingDate,
		TotalTransactions: c.TotalTransactions,
		TotalItemsSold:    c.TotalItemsSold,
		TotalSalesAmount:  c.TotalSalesAmount,
		CashCalculated:    c.CashCalculated,
		CardsCalculated:   c.CardsCalculated,
		SinpeCalculated:   c.SinpeCalculated,
		CashDeclared:      c.CashDeclared,
		CashDifference:    c.CashDifference,
		ClosedBy:          identity.ToExternal(c.ClosedByUserID, identity.FamilyUser),
		SupervisedBy:      identity.OptionalExternal(c.SupervisorUserID, identity.FamilyUser),
		Observations:      c.Observations,
	}
}

func saleToResponse(t *model.SalesTransaction) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:                 identity.ToExternal(t.ID, identity.FamilySalesTransaction),
		CashRegisterID:     identity.ToExternal(t.CashRegisterID, identity.FamilyCashRegister),
		TransactionNumber:  t.TransactionNumber,
		Status:             string(t.SalesStatus),
		TransactionDate:    t.TransactionDate,
		TotalAmount:        t.TotalAmount,
		TotalPaid:          decimal.Zero,
		Change:             decimal.Zero,
		Details:            make([]dto.SaleDetailResponse, 0, len(t.Details)),
		Payments:           make([]dto.PaymentResponse, 0, len(t.Payments)),
		CancellationReason: t.CancellationReason,
		CancelledAt:        t.CancelledAt,
		CompletedAt:        t.CompletedAt,
	}
	for _, d := range t.Details {
		resp.Details = append(resp.Details, dto.SaleDetailResponse{
			ID:          identity.ToExternal(d.ID, identity.FamilyTransactionDetail),
			ProductID:   identity.OptionalExternal(d.ProductID, identity.FamilyProduct),
			ComboID:     identity.OptionalExternal(d.ComboID, identity.FamilyCombo),
			IsCombo:     d.IsCombo,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			TotalAmount: d.TotalAmount,
		})
	}
	for _, p := range t.Payments {
		resp.TotalPaid = resp.TotalPaid.Add(p.Amount)
		resp.Payments = append(resp.Payments, dto.PaymentResponse{
			ID:              identity.ToExternal(p.ID, identity.FamilyPayment),
			PaymentMethodID: identity.ToExternal(p.PaymentMethodID, identity.FamilyPaymentMethod),
			Amount:          p.Amount,
			Reference:       p.Reference,
			ProcessedAt:     p.ProcessedAt,
			ProcessedBy:     identity.ToExternal(p.ProcessedBy, identity.FamilyUser),
		})
	}
	if len(t.Payments) > 0 && resp.TotalPaid.GreaterThan(t.TotalAmount) {
		resp.Change = resp.TotalPaid.Sub(t.TotalAmount)
	}
	return resp
}

func movementToResponse(m *model.InventoryMovement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:                 identity.ToExternal(m.ID, identity.FamilyMovement),
		ProductID:          identity.ToExternal(m.ProductID, identity.FamilyProduct),
		MovementType:       model.MovementTypeName(m.MovementTypeID),
		Quantity:           m.Quantity,
		PreviousQuantity:   m.PreviousQuantity,
		NewQuantity:        m.NewQuantity,
		Justification:      m.Justification,
		SalesTransactionID: identity.OptionalExternal(m.SalesTransactionID, identity.FamilySalesTransaction),
		CreatedBy:          identity.OptionalExternal(m.CreatedBy, identity.FamilyUser),
		CreatedAt:          m.CreatedAt,
	}
}

func summaryToResponse(s *SalesSummary, registerID *int64) *dto.SalesSummaryResponse {
	return &dto.SalesSummaryResponse{
		CashRegisterID:        identity.OptionalExternal(registerID, identity.FamilyCashRegister),
		Date:                  s.Day.Format("2006-01-02"),
		TotalTransactions:     s.TotalTransactions,
		CompletedTransactions: s.CompletedTransactions,
		PendingTransactions:   s.PendingTransactions,
		CancelledTransactions: s.CancelledTransactions,
		TotalSales:            s.TotalSales,
		AverageTransaction:    s.AverageTransaction,
		TotalItemsSold:        s.TotalItemsSold,
	}
}
