package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komono/backend/internal/domain/coupon"
	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

type callbackFixture struct {
	svc     *CallbackService
	pay     *Service
	txns    *fakeTxnRepo
	orders  *fakeOrderRepo
	coupons *fakeCouponRepo
	gw      *fakeGateway
	idem    *memIdemStore
}

func newCallbackFixture(t *testing.T) *callbackFixture {
	t.Helper()
	f := &callbackFixture{
		txns:    newFakeTxnRepo(),
		orders:  newFakeOrderRepo(),
		coupons: newFakeCouponRepo(),
		gw:      &fakeGateway{name: "gmo"},
		idem:    newMemIdemStore(),
	}
	selector := &fakeSelector{gw: f.gw}
	f.pay = NewService(f.txns, f.orders, selector, shared.NopTransactionManager{}, Config{Expiry: 30 * time.Minute}, nil)
	f.svc = NewCallbackService(CallbackServiceConfig{
		Transactions: f.txns,
		Orders:       f.orders,
		Coupons:      f.coupons,
		Gateways:     selector,
		Idempotency:  f.idem,
		Tx:           shared.NopTransactionManager{},
		Payments:     f.pay,
	})
	return f
}

// openAttempt places a pending order and opens a payment attempt on it
func (f *callbackFixture) openAttempt(t *testing.T, amount int64) (*payment.Transaction, *order.Order) {
	t.Helper()
	o := pendingOrder(t, amount)
	require.NoError(t, f.orders.Save(context.Background(), o))
	resp, err := f.pay.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID: o.ID,
		Method:  payment.MethodCreditCard,
	})
	require.NoError(t, err)
	txn, err := f.txns.FindByID(context.Background(), resp.TransactionID)
	require.NoError(t, err)
	return txn, o
}

func (f *callbackFixture) notifyCompleted(txn *payment.Transaction, amount int64) {
	f.gw.notification = &payment.CallbackNotification{
		ExternalTransactionID: "ext-" + txn.TransactionNumber,
		TransactionNumber:     txn.TransactionNumber,
		Status:                payment.StatusCompleted,
		PaidAmount:            valueobject.NewMoneyJPYFromInt(amount),
		RawPayload:            `{"result":"PAYSUCCESS"}`,
	}
}

func TestProcessCallback(t *testing.T) {
	t.Run("completion confirms the order", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)
		f.notifyCompleted(txn, 9800)

		result, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.False(t, result.AlreadyProcessed)
		assert.Equal(t, []byte("OK"), result.GatewayResponse)

		assert.Equal(t, payment.StatusCompleted, txn.Status)
		assert.Equal(t, order.StatusConfirmed, o.Status)
		assert.NotNil(t, o.ConfirmedAt)
	})

	t.Run("replayed delivery applies once and echoes success", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)
		f.notifyCompleted(txn, 9800)

		first, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)
		require.False(t, first.AlreadyProcessed)

		second, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)
		assert.True(t, second.Success)
		assert.True(t, second.AlreadyProcessed)
		assert.Equal(t, []byte("OK"), second.GatewayResponse)

		assert.Equal(t, order.StatusConfirmed, o.Status)
		assert.Equal(t, payment.StatusCompleted, txn.Status)
	})

	t.Run("invalid signature mutates nothing", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)
		f.notifyCompleted(txn, 9800)

		_, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "forged")
		require.ErrorIs(t, err, shared.ErrInvalidSignature)
		assert.Equal(t, payment.StatusPending, txn.Status)
		assert.Equal(t, order.StatusPending, o.Status)
	})

	t.Run("unregistered gateway is rejected", func(t *testing.T) {
		f := newCallbackFixture(t)
		_, err := f.svc.ProcessCallback(context.Background(), "unknown", []byte(`{}`), "valid")
		require.ErrorIs(t, err, ErrGatewayNotRegistered)
	})

	t.Run("late success on a cancelled order refunds automatically", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)
		require.NoError(t, o.Cancel("changed mind"))
		f.notifyCompleted(txn, 9800)

		result, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.AutoRefunded)

		assert.Equal(t, order.StatusCancelled, o.Status, "order stays cancelled")
		assert.Equal(t, payment.StatusRefunded, txn.Status)
		require.Len(t, f.gw.refunds, 1)
		assert.Equal(t, int64(9800), f.gw.refunds[0].Amount.IntPart())
	})

	t.Run("failed auto-refund settles on the gateway redelivery", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)
		require.NoError(t, o.Cancel("changed mind"))
		f.notifyCompleted(txn, 9800)

		f.gw.refundErr = errors.New("gateway timeout")
		_, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.ErrorIs(t, err, shared.ErrGatewayUnavailable)
		assert.Equal(t, int64(0), txn.RefundedAmount.IntPart())

		// the key was released; the redelivery must settle the refund
		// instead of short-circuiting as a replayed terminal status
		f.gw.refundErr = nil
		result, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.AutoRefunded)

		assert.Equal(t, order.StatusCancelled, o.Status)
		assert.Equal(t, payment.StatusRefunded, txn.Status)
		require.Len(t, f.gw.refunds, 1)
		assert.Equal(t, int64(9800), f.gw.refunds[0].Amount.IntPart())
	})

	t.Run("redelivery settles a refund still owed to a cancelled order", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)
		require.NoError(t, o.Cancel("changed mind"))
		// the first delivery committed the completion but never got to
		// the refund, and its idempotency key has since expired
		require.NoError(t, txn.Transition(payment.StatusProcessing, "gateway reported completion", ""))
		require.NoError(t, txn.Transition(payment.StatusCompleted, "gateway callback", ""))
		f.notifyCompleted(txn, 9800)

		result, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)
		assert.True(t, result.AutoRefunded)
		assert.False(t, result.AlreadyProcessed)
		assert.Equal(t, payment.StatusRefunded, txn.Status)
		require.Len(t, f.gw.refunds, 1)
	})

	t.Run("completion commits the reserved coupon usage exactly once", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)

		cpn, err := coupon.NewCoupon("AUTUMN", coupon.TypePercentage, decimal.NewFromInt(10),
			time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
		require.NoError(t, err)
		require.NoError(t, f.coupons.Save(context.Background(), cpn))
		// usage reserved at order creation
		require.NoError(t, cpn.RecordUse())
		require.NoError(t, f.coupons.InsertUsage(context.Background(), &coupon.CouponUsage{
			BaseEntity: shared.NewBaseEntity(),
			CouponID:   cpn.ID,
			OrderID:    o.ID,
		}))
		o.ApplyCoupon("AUTUMN")

		f.notifyCompleted(txn, 9800)
		_, err = f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)

		assert.Equal(t, 1, cpn.UsedCount, "reserved usage must not double-count")
	})

	t.Run("failure callback fails the attempt", func(t *testing.T) {
		f := newCallbackFixture(t)
		txn, o := f.openAttempt(t, 9800)
		f.gw.notification = &payment.CallbackNotification{
			ExternalTransactionID: "ext-" + txn.TransactionNumber,
			Status:                payment.StatusFailed,
			RawPayload:            `{"result":"PAYFAIL"}`,
		}

		result, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, payment.StatusFailed, txn.Status)
		assert.Equal(t, order.StatusPending, o.Status, "a failed attempt leaves the order payable")
	})

	t.Run("unknown transaction requests a retry", func(t *testing.T) {
		f := newCallbackFixture(t)
		f.gw.notification = &payment.CallbackNotification{
			ExternalTransactionID: "ext-PAY-2026-99999",
			Status:                payment.StatusCompleted,
		}

		_, err := f.svc.ProcessCallback(context.Background(), "gmo", []byte(`{}`), "valid")
		require.ErrorIs(t, err, ErrTransactionNotFound)

		// the key was released, so the gateway's retry reprocesses
		processed, err := f.idem.IsProcessed(context.Background(),
			"callback:idempotency:gmo:ext-PAY-2026-99999:"+payment.StatusCompleted.String())
		require.NoError(t, err)
		assert.False(t, processed)
	})
}
