package service_test

import (
	"testing"
	"time"

	"eventpos/internal/apierror"
	"eventpos/internal/dto"
	"eventpos/internal/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Create / Update / Delete ─────────────────────────────────────────────────

func TestCreateRegister(t *testing.T) {
	h := newHarness(t)
	activity := identity.ToExternal(h.activity, identity.FamilyActivity)

	reg, err := h.registers.Create(h.ctx, dto.CreateCashRegisterRequest{ActivityID: activity, RegisterNumber: 2, Name: "North stand"})
	require.NoError(t, err)
	assert.False(t, reg.IsOpen)
	assert.Equal(t, 2, reg.RegisterNumber)
	assert.Equal(t, activity, reg.ActivityID)

	_, err = h.registers.Create(h.ctx, dto.CreateCashRegisterRequest{ActivityID: activity, RegisterNumber: 1, Name: "Dup"})
	assert.True(t, apierror.IsKind(err, apierror.KindConflict))
	assert.True(t, apierror.HasCode(err, apierror.CodeDuplicateRegisterNumber))

	_, err = h.registers.Create(h.ctx, dto.CreateCashRegisterRequest{
		ActivityID:     identity.ToExternal(99, identity.FamilyActivity),
		RegisterNumber: 3,
		Name:           "Nowhere",
	})
	assert.True(t, apierror.HasCode(err, apierror.CodeActivityNotFound))

	_, err = h.registers.Create(h.ctx, dto.CreateCashRegisterRequest{ActivityID: activity, RegisterNumber: 0, Name: "Zero"})
	assert.True(t, apierror.HasCode(err, apierror.CodeInvalidRequest))
}

func TestUpdateRegister_OnlyWhileClosed(t *testing.T) {
	h := newHarness(t)

	got, err := h.registers.Update(h.ctx, h.registerID(), dto.UpdateCashRegisterRequest{RegisterNumber: 7, Name: "Main gate (east)"})
	require.NoError(t, err)
	assert.Equal(t, 7, got.RegisterNumber)
	assert.Equal(t, "Main gate (east)", got.Name)

	h.openRegister()
	_, err = h.registers.Update(h.ctx, h.registerID(), dto.UpdateCashRegisterRequest{RegisterNumber: 8, Name: "x"})
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))
}

func TestDeleteRegister_Guards(t *testing.T) {
	h := newHarness(t)
	h.openRegister()

	err := h.registers.Delete(h.ctx, h.registerID())
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState), "open register")

	h.createSale(h.waterLine(1))
	h.closeRegister("0")

	err = h.registers.Delete(h.ctx, h.registerID())
	assert.True(t, apierror.HasCode(err, apierror.CodeHasTransactions))

	activity := identity.ToExternal(h.activity, identity.FamilyActivity)
	spare, err := h.registers.Create(h.ctx, dto.CreateCashRegisterRequest{ActivityID: activity, RegisterNumber: 9, Name: "Spare"})
	require.NoError(t, err)
	require.NoError(t, h.registers.Delete(h.ctx, spare.ID))

	_, err = h.registers.Get(h.ctx, spare.ID)
	assert.True(t, apierror.HasCode(err, apierror.CodeRegisterNotFound))
}

// ── Open / Close ─────────────────────────────────────────────────────────────

func TestOpenRegister(t *testing.T) {
	h := newHarness(t)
	sup := h.userID(h.operator)

	reg, err := h.registers.Open(h.ctx, h.registerID(), dto.OpenCashRegisterRequest{
		OperatorUserID:   h.userID(h.operator),
		SupervisorUserID: &sup,
	})
	require.NoError(t, err)
	assert.True(t, reg.IsOpen)
	require.NotNil(t, reg.OpenedAt)
	assert.Equal(t, baseTime, *reg.OpenedAt)
	assert.Nil(t, reg.ClosedAt)

	_, err = h.registers.Open(h.ctx, h.registerID(), dto.OpenCashRegisterRequest{OperatorUserID: h.userID(h.operator)})
	assert.True(t, apierror.HasCode(err, apierror.CodeAlreadyOpen))

	open, err := h.registers.ListOpen(h.ctx, nil)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, h.registerID(), open[0].ID)
}

func TestOpenRegister_AlreadyOpenReportedBeforeOperator(t *testing.T) {
	h := newHarness(t)
	h.openRegister()

	_, err := h.registers.Open(h.ctx, h.registerID(), dto.OpenCashRegisterRequest{OperatorUserID: h.userID(h.inactive)})
	assert.True(t, apierror.HasCode(err, apierror.CodeAlreadyOpen))

	_, err = h.registers.Open(h.ctx, identity.ToExternal(999, identity.FamilyCashRegister), dto.OpenCashRegisterRequest{OperatorUserID: h.userID(h.inactive)})
	assert.True(t, apierror.HasCode(err, apierror.CodeRegisterNotFound))
}

func TestOpenRegister_RejectsInactiveOperator(t *testing.T) {
	h := newHarness(t)

	_, err := h.registers.Open(h.ctx, h.registerID(), dto.OpenCashRegisterRequest{OperatorUserID: h.userID(h.inactive)})
	assert.True(t, apierror.HasCode(err, apierror.CodeOperatorNotFound))

	_, err = h.registers.Open(h.ctx, h.registerID(), dto.OpenCashRegisterRequest{OperatorUserID: h.userID(555)})
	assert.True(t, apierror.HasCode(err, apierror.CodeOperatorNotFound))

	reg, err := h.registers.Get(h.ctx, h.registerID())
	require.NoError(t, err)
	assert.False(t, reg.IsOpen)
}

func TestCloseRegister_ZeroDifference(t *testing.T) {
	h := newHarness(t)
	h.openRegister()
	h.clock.Advance(time.Minute)

	sale := h.createSale(h.waterLine(2))
	h.complete(sale.ID, h.cashPayment("20.00"))

	h.clock.Advance(time.Hour)
	closure := h.closeRegister("20.00")
	assert.Equal(t, 1, closure.TotalTransactions)
	assert.Equal(t, 2, closure.TotalItemsSold)
	assert.True(t, dec("20.00").Equal(closure.TotalSalesAmount))
	assert.True(t, dec("20.00").Equal(closure.CashCalculated))
	assert.True(t, closure.CardsCalculated.IsZero())
	assert.True(t, closure.SinpeCalculated.IsZero())
	assert.True(t, closure.CashDifference.IsZero())
	assert.Equal(t, baseTime, closure.OpeningDate)
	assert.Equal(t, baseTime.Add(61*time.Minute), closure.ClosingDate)

	reg, err := h.registers.Get(h.ctx, h.registerID())
	require.NoError(t, err)
	assert.False(t, reg.IsOpen)
	require.NotNil(t, reg.ClosedAt)

	require.Len(t, h.jobs.closureReports, 1)
	assert.Equal(t, h.register, h.jobs.closureReports[0].CashRegisterID)
}

func TestCloseRegister_ByMethodWithChangeAndShortage(t *testing.T) {
	h := newHarness(t)
	h.openRegister()

	// $20 sale paid with $50 cash: $30 change leaves the drawer
	s1 := h.createSale(h.waterLine(2))
	h.complete(s1.ID, h.cashPayment("50.00"))

	s2 := h.createSale(h.waterLine(1), dto.SaleItemRequest{ProductID: h.productID(h.chips), Quantity: 1})
	h.complete(s2.ID, dto.CompleteSaleRequest{
		Payments: []dto.PaymentRequest{
			{PaymentMethodID: h.methodID(h.card), Amount: dec("10.00"), Reference: strPtr("VISA-1")},
			{PaymentMethodID: h.methodID(h.sinpe), Amount: dec("5.50"), Reference: strPtr("SP-88")},
		},
		ProcessedBy: h.userID(h.operator),
	})

	// pending and cancelled sales stay out of the closure
	h.createSale(h.waterLine(1))
	s4 := h.createSale(h.waterLine(1))
	h.complete(s4.ID, h.cashPayment("10.00"))
	_, err := h.sales.Cancel(h.ctx, s4.ID, dto.CancelSaleRequest{Reason: "void"})
	require.NoError(t, err)

	closure, err := h.registers.Close(h.ctx, h.registerID(), dto.CloseCashRegisterRequest{
		CashDeclared: dec("18.00"),
		ClosedBy:     h.userID(h.operator),
		Observations: strPtr("short by two"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, closure.TotalTransactions)
	assert.Equal(t, 4, closure.TotalItemsSold)
	assert.True(t, dec("35.50").Equal(closure.TotalSalesAmount))
	assert.True(t, dec("20.00").Equal(closure.CashCalculated), closure.CashCalculated.String())
	assert.True(t, dec("10.00").Equal(closure.CardsCalculated))
	assert.True(t, dec("5.50").Equal(closure.SinpeCalculated))
	assert.True(t, dec("-2.00").Equal(closure.CashDifference))
	require.NotNil(t, closure.Observations)
}

func TestCloseRegister_OnlyCountsCurrentSession(t *testing.T) {
	h := newHarness(t)
	h.openRegister()
	s1 := h.createSale(h.waterLine(1))
	h.complete(s1.ID, h.cashPayment("10.00"))
	h.closeRegister("10.00")

	h.clock.Advance(time.Hour)
	h.openRegister()
	h.clock.Advance(time.Minute)
	s2 := h.createSale(h.waterLine(3))
	h.complete(s2.ID, h.cashPayment("30.00"))

	closure := h.closeRegister("30.00")
	assert.Equal(t, 1, closure.TotalTransactions)
	assert.True(t, dec("30.00").Equal(closure.TotalSalesAmount))

	last, err := h.registers.GetLastClosure(h.ctx, h.registerID())
	require.NoError(t, err)
	assert.Equal(t, closure.ID, last.ID)
}

func TestCloseRegister_CountsSaleInSessionThatCompletedIt(t *testing.T) {
	h := newHarness(t)
	h.openRegister()
	sale := h.createSale(h.waterLine(2))
	h.clock.Advance(time.Minute)

	first := h.closeRegister("0")
	assert.Equal(t, 0, first.TotalTransactions)
	assert.True(t, first.CashDifference.IsZero())

	h.clock.Advance(time.Hour)
	h.openRegister()
	h.clock.Advance(time.Minute)
	h.complete(sale.ID, h.cashPayment("20.00"))

	second := h.closeRegister("20.00")
	assert.Equal(t, 1, second.TotalTransactions)
	assert.Equal(t, 2, second.TotalItemsSold)
	assert.True(t, dec("20.00").Equal(second.CashCalculated))
	assert.True(t, second.CashDifference.IsZero())
}

func TestCloseRegister_NotOpen(t *testing.T) {
	h := newHarness(t)
	_, err := h.registers.Close(h.ctx, h.registerID(), dto.CloseCashRegisterRequest{ClosedBy: h.userID(h.operator)})
	assert.True(t, apierror.HasCode(err, apierror.CodeNotOpen))
	assert.Empty(t, h.jobs.closureReports)
}

func TestCloseRegister_RollsBackWhenClosureWriteFails(t *testing.T) {
	h := newHarness(t)
	h.openRegister()
	h.store.failOn("CreateClosureTx", errInjected)

	_, err := h.registers.Close(h.ctx, h.registerID(), dto.CloseCashRegisterRequest{ClosedBy: h.userID(h.operator)})
	assert.True(t, apierror.IsKind(err, apierror.KindInternal))

	reg, err := h.registers.Get(h.ctx, h.registerID())
	require.NoError(t, err)
	assert.True(t, reg.IsOpen)
	assert.Empty(t, h.jobs.closureReports)
}

func TestCloseRegister_ReportEnqueueFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.openRegister()
	h.jobs.err = errInjected

	closure := h.closeRegister("0")
	assert.NotNil(t, closure)
}

func TestGetLastClosure_NoneYet(t *testing.T) {
	h := newHarness(t)
	_, err := h.registers.GetLastClosure(h.ctx, h.registerID())
	assert.True(t, apierror.HasCode(err, apierror.CodeClosureNotFound))

	_, err = h.registers.GetLastClosure(h.ctx, identity.ToExternal(404, identity.FamilyCashRegister))
	assert.True(t, apierror.HasCode(err, apierror.CodeRegisterNotFound))
}
