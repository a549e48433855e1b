package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komono/backend/internal/domain/coupon"
	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

type fakeTxnRepo struct {
	txns map[uuid.UUID]*payment.Transaction
	seq  int
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{txns: make(map[uuid.UUID]*payment.Transaction)}
}

func (r *fakeTxnRepo) Save(_ context.Context, txn *payment.Transaction) error {
	r.txns[txn.ID] = txn
	return nil
}

func (r *fakeTxnRepo) SaveWithLock(ctx context.Context, txn *payment.Transaction) error {
	return r.Save(ctx, txn)
}

func (r *fakeTxnRepo) FindByID(_ context.Context, id uuid.UUID) (*payment.Transaction, error) {
	txn, ok := r.txns[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return txn, nil
}

func (r *fakeTxnRepo) FindByNumber(_ context.Context, number string) (*payment.Transaction, error) {
	for _, txn := range r.txns {
		if txn.TransactionNumber == number {
			return txn, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTxnRepo) FindByExternalID(_ context.Context, externalID string) (*payment.Transaction, error) {
	for _, txn := range r.txns {
		if txn.ExternalTransactionID != nil && *txn.ExternalTransactionID == externalID {
			return txn, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTxnRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*payment.Transaction, error) {
	var out []*payment.Transaction
	for _, txn := range r.txns {
		if txn.OrderID == orderID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) FindOpenByOrder(_ context.Context, orderID uuid.UUID) (*payment.Transaction, error) {
	for _, txn := range r.txns {
		if txn.OrderID == orderID && txn.Status.IsOpen() {
			return txn, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTxnRepo) FindStale(_ context.Context, now time.Time, limit int) ([]*payment.Transaction, error) {
	var out []*payment.Transaction
	for _, txn := range r.txns {
		if txn.Status.IsOpen() && txn.ExpiresAt.Before(now) {
			out = append(out, txn)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) GenerateTransactionNumber(_ context.Context) (string, error) {
	r.seq++
	return fmt.Sprintf("PAY-2026-%05d", r.seq), nil
}

type fakeOrderRepo struct {
	orders map[uuid.UUID]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*order.Order)}
}

func (r *fakeOrderRepo) Save(_ context.Context, o *order.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) SaveWithLock(ctx context.Context, o *order.Order) error {
	return r.Save(ctx, o)
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) FindByNumber(_ context.Context, number string) (*order.Order, error) {
	for _, o := range r.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOrderRepo) FindByUser(_ context.Context, _ uuid.UUID, _ shared.Filter) (*shared.Paginated[order.Order], error) {
	return &shared.Paginated[order.Order]{}, nil
}

func (r *fakeOrderRepo) GenerateOrderNumber(_ context.Context) (string, error) {
	return "ORD-2026-00001", nil
}

type fakeCouponRepo struct {
	byCode map[string]*coupon.Coupon
	usages map[string]*coupon.CouponUsage
}

func newFakeCouponRepo() *fakeCouponRepo {
	return &fakeCouponRepo{
		byCode: make(map[string]*coupon.Coupon),
		usages: make(map[string]*coupon.CouponUsage),
	}
}

func (r *fakeCouponRepo) Save(_ context.Context, c *coupon.Coupon) error {
	r.byCode[c.Code] = c
	return nil
}

func (r *fakeCouponRepo) SaveWithLock(ctx context.Context, c *coupon.Coupon) error {
	return r.Save(ctx, c)
}

func (r *fakeCouponRepo) FindByID(_ context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	for _, c := range r.byCode {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := r.byCode[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (r *fakeCouponRepo) FindByCodeForUpdate(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.FindByCode(ctx, code)
}

func (r *fakeCouponRepo) InsertUsage(_ context.Context, usage *coupon.CouponUsage) error {
	key := usage.CouponID.String() + "/" + usage.OrderID.String()
	if _, ok := r.usages[key]; ok {
		return shared.ErrAlreadyExists
	}
	r.usages[key] = usage
	return nil
}

func (r *fakeCouponRepo) DeleteUsage(_ context.Context, couponID, orderID uuid.UUID) error {
	delete(r.usages, couponID.String()+"/"+orderID.String())
	return nil
}

func (r *fakeCouponRepo) FindUsage(_ context.Context, couponID, orderID uuid.UUID) (*coupon.CouponUsage, error) {
	usage, ok := r.usages[couponID.String()+"/"+orderID.String()]
	if !ok {
		return nil, nil
	}
	return usage, nil
}

// fakeGateway answers every method and records what it was asked
type fakeGateway struct {
	name         string
	createErr    error
	refundErr    error
	rejectRefund bool
	refunds      []*payment.RefundRequest
	closed       []string
	notification *payment.CallbackNotification
	parseErr     error
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) Supports(payment.Method) bool { return true }

func (g *fakeGateway) CreatePayment(_ context.Context, req *payment.CreatePaymentRequest) (*payment.Instruction, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.Instruction{
		Kind:                  payment.InstructionRedirect,
		ExternalTransactionID: "ext-" + req.TransactionNumber,
		RedirectURL:           "https://pay.example.com/" + req.TransactionNumber,
		ExpiresAt:             req.ExpiresAt,
	}, nil
}

func (g *fakeGateway) QueryPayment(_ context.Context, externalID string) (*payment.QueryResult, error) {
	return &payment.QueryResult{ExternalTransactionID: externalID, Status: payment.StatusPending}, nil
}

func (g *fakeGateway) ClosePayment(_ context.Context, externalID string) error {
	g.closed = append(g.closed, externalID)
	return nil
}

func (g *fakeGateway) CreateRefund(_ context.Context, req *payment.RefundRequest) (*payment.RefundResult, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, req)
	return &payment.RefundResult{
		ExternalRefundID: "ref-" + req.RefundNumber,
		Accepted:         !g.rejectRefund,
	}, nil
}

func (g *fakeGateway) VerifyCallback(_ []byte, signature string) error {
	if signature != "valid" {
		return shared.ErrInvalidSignature
	}
	return nil
}

func (g *fakeGateway) ParseCallback(_ []byte) (*payment.CallbackNotification, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.notification, nil
}

func (g *fakeGateway) GenerateCallbackResponse(success bool) []byte {
	if success {
		return []byte("OK")
	}
	return []byte("RETRY")
}

type fakeSelector struct {
	gw *fakeGateway
}

func (s *fakeSelector) ForMethod(payment.Method) (payment.Gateway, error) { return s.gw, nil }

func (s *fakeSelector) ForName(name string) (payment.Gateway, error) {
	if name != s.gw.name {
		return nil, shared.NewNotFoundError("GATEWAY_NOT_FOUND", "no adapter for "+name)
	}
	return s.gw, nil
}

// memIdemStore is an in-process IdempotencyStore for tests
type memIdemStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemIdemStore() *memIdemStore {
	return &memIdemStore{keys: make(map[string]bool)}
}

func (s *memIdemStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memIdemStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memIdemStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memIdemStore) Close() error { return nil }

func pendingOrder(t *testing.T, amount int64) *order.Order {
	t.Helper()
	addr, err := valueobject.NewAddress("980-0021", "宮城県", "仙台市青葉区", "中央1-1-1", "鈴木一郎")
	require.NoError(t, err)
	o, err := order.NewOrder("ORD-2026-00777", uuid.New(), addr, addr)
	require.NoError(t, err)
	unit := valueobject.NewMoneyJPYFromInt(amount)
	require.NoError(t, o.AddItem(uuid.New(), nil, "有田焼の茶碗", 1, unit, false, ""))
	require.NoError(t, o.SetTotals(order.Totals{
		Subtotal:       unit,
		ShippingCost:   valueobject.ZeroJPY(),
		TaxAmount:      valueobject.ZeroJPY(),
		TaxIncluded:    true,
		DiscountAmount: valueobject.ZeroJPY(),
		Total:          unit,
	}))
	require.NoError(t, o.Submit())
	return o
}

func newPaymentFixture(t *testing.T) (*Service, *fakeTxnRepo, *fakeOrderRepo, *fakeGateway) {
	t.Helper()
	txns := newFakeTxnRepo()
	orders := newFakeOrderRepo()
	gw := &fakeGateway{name: "gmo"}
	svc := NewService(txns, orders, &fakeSelector{gw: gw}, shared.NopTransactionManager{}, Config{Expiry: 30 * time.Minute}, nil)
	return svc, txns, orders, gw
}

func TestCreatePayment(t *testing.T) {
	t.Run("opens an attempt and returns the gateway instruction", func(t *testing.T) {
		svc, _, orders, _ := newPaymentFixture(t)
		o := pendingOrder(t, 12000)
		require.NoError(t, orders.Save(context.Background(), o))

		resp, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
			OrderID: o.ID,
			Method:  payment.MethodCreditCard,
		})
		require.NoError(t, err)
		require.NotNil(t, resp.Instruction)
		assert.Equal(t, payment.InstructionRedirect, resp.Instruction.Kind)
		assert.NotEmpty(t, resp.Instruction.RedirectURL)
	})

	t.Run("rejects a second attempt while one is open", func(t *testing.T) {
		svc, _, orders, _ := newPaymentFixture(t)
		o := pendingOrder(t, 12000)
		require.NoError(t, orders.Save(context.Background(), o))

		_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
			OrderID: o.ID,
			Method:  payment.MethodCreditCard,
		})
		require.NoError(t, err)

		_, err = svc.CreatePayment(context.Background(), CreatePaymentRequest{
			OrderID: o.ID,
			Method:  payment.MethodPayPay,
		})
		require.ErrorIs(t, err, shared.ErrPaymentInProgress)
	})

	t.Run("gateway failure fails the attempt so a retry is not blocked", func(t *testing.T) {
		svc, _, orders, gw := newPaymentFixture(t)
		o := pendingOrder(t, 12000)
		require.NoError(t, orders.Save(context.Background(), o))
		gw.createErr = errors.New("connection refused")

		_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
			OrderID: o.ID,
			Method:  payment.MethodCreditCard,
		})
		require.ErrorIs(t, err, shared.ErrGatewayUnavailable)

		gw.createErr = nil
		_, err = svc.CreatePayment(context.Background(), CreatePaymentRequest{
			OrderID: o.ID,
			Method:  payment.MethodCreditCard,
		})
		require.NoError(t, err)
	})

	t.Run("rejects orders that are not pending", func(t *testing.T) {
		svc, _, orders, _ := newPaymentFixture(t)
		o := pendingOrder(t, 12000)
		require.NoError(t, o.Transition(order.StatusConfirmed))
		require.NoError(t, orders.Save(context.Background(), o))

		_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
			OrderID: o.ID,
			Method:  payment.MethodCreditCard,
		})
		require.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func completedTransaction(t *testing.T, svc *Service, orders *fakeOrderRepo, txns *fakeTxnRepo, amount int64) (*payment.Transaction, *order.Order) {
	t.Helper()
	o := pendingOrder(t, amount)
	require.NoError(t, orders.Save(context.Background(), o))
	resp, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID: o.ID,
		Method:  payment.MethodCreditCard,
	})
	require.NoError(t, err)
	txn, err := txns.FindByID(context.Background(), resp.TransactionID)
	require.NoError(t, err)
	require.NoError(t, txn.Transition(payment.StatusProcessing, "", ""))
	require.NoError(t, txn.Transition(payment.StatusCompleted, "", ""))
	return txn, o
}

func TestRefund(t *testing.T) {
	t.Run("partial refunds accumulate up to the paid amount", func(t *testing.T) {
		svc, txns, orders, gw := newPaymentFixture(t)
		txn, _ := completedTransaction(t, svc, orders, txns, 10000)

		refunded, err := svc.Refund(context.Background(), RefundRequest{
			TransactionID: txn.ID,
			Amount:        4000,
			Reason:        "partial return",
		})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCompleted, refunded.Status, "partial refund keeps the transaction completed")
		assert.Equal(t, int64(4000), refunded.RefundedAmount.IntPart())

		refunded, err = svc.Refund(context.Background(), RefundRequest{
			TransactionID: txn.ID,
			Amount:        6000,
			Reason:        "remaining return",
		})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, refunded.Status)
		require.Len(t, gw.refunds, 2)
		assert.Equal(t, "PAY-2026-00001-R1", gw.refunds[0].RefundNumber)
		assert.Equal(t, "PAY-2026-00001-R2", gw.refunds[1].RefundNumber)
	})

	t.Run("rejects refunds past the paid amount", func(t *testing.T) {
		svc, txns, orders, _ := newPaymentFixture(t)
		txn, _ := completedTransaction(t, svc, orders, txns, 10000)

		_, err := svc.Refund(context.Background(), RefundRequest{
			TransactionID: txn.ID,
			Amount:        10001,
			Reason:        "too much",
		})
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "REFUND_EXCEEDS_PAID", derr.Code)
	})
}

func TestRefundOrderAmount(t *testing.T) {
	t.Run("refunds against the order's completed transaction", func(t *testing.T) {
		svc, txns, orders, _ := newPaymentFixture(t)
		txn, o := completedTransaction(t, svc, orders, txns, 8000)

		got, err := svc.RefundOrderAmount(context.Background(), o.ID, valueobject.NewMoneyJPYFromInt(3000), "return RET-2026-00001")
		require.NoError(t, err)
		assert.Equal(t, txn.ID, got.ID)
		assert.Equal(t, int64(3000), got.RefundedAmount.IntPart())
	})

	t.Run("reports when no completed payment exists", func(t *testing.T) {
		svc, _, orders, _ := newPaymentFixture(t)
		o := pendingOrder(t, 8000)
		require.NoError(t, orders.Save(context.Background(), o))

		_, err := svc.RefundOrderAmount(context.Background(), o.ID, valueobject.NewMoneyJPYFromInt(3000), "return")
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "NO_REFUNDABLE_PAYMENT", derr.Code)
	})
}

func TestExpireStaleTransactions(t *testing.T) {
	svc, txns, orders, gw := newPaymentFixture(t)
	o := pendingOrder(t, 5000)
	require.NoError(t, orders.Save(context.Background(), o))
	resp, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID: o.ID,
		Method:  payment.MethodKonbini,
	})
	require.NoError(t, err)

	swept, err := svc.ExpireStaleTransactions(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	txn, err := txns.FindByID(context.Background(), resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, txn.Status)
	assert.Equal(t, []string{"ext-" + txn.TransactionNumber}, gw.closed)

	// a second sweep finds nothing open
	swept, err = svc.ExpireStaleTransactions(context.Background(), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, swept)
}
