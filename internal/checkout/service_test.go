package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/medinashop/checkout-backend/internal/cart"
	"github.com/medinashop/checkout-backend/internal/config"
	"github.com/medinashop/checkout-backend/internal/order"
	"github.com/medinashop/checkout-backend/internal/payment"
)

type stubCard struct {
	createCalls int
	intent      payment.Intent
	createErr   error

	retrieveCalls int
	retrieved     payment.Intent
	retrieveErr   error
}

func (s *stubCard) CreateAndConfirmIntent(_ context.Context, _ int64, _, _, _ string) (payment.Intent, error) {
	s.createCalls++
	return s.intent, s.createErr
}

func (s *stubCard) RetrieveIntent(_ context.Context, _ string) (payment.Intent, error) {
	s.retrieveCalls++
	return s.retrieved, s.retrieveErr
}

type stubWallet struct {
	createCalls  int
	order        payment.WalletOrder
	createErr    error
	captureCalls int
	capture      payment.Capture
	captureErr   error
}

func (s *stubWallet) CreateOrder(_ context.Context, _ payment.CreateWalletOrderRequest) (payment.WalletOrder, error) {
	s.createCalls++
	return s.order, s.createErr
}

func (s *stubWallet) CaptureOrder(_ context.Context, _ string) (payment.Capture, error) {
	s.captureCalls++
	return s.capture, s.captureErr
}

type fixture struct {
	svc      *Service
	carts    *cart.InMemoryRepository
	orders   *order.InMemoryRepository
	sessions *InMemorySessionStore
	card     *stubCard
	wallet   *stubWallet
}

func testConfig() config.Config {
	return config.Config{
		CardCurrency:    "mad",
		WalletCurrency:  "USD",
		ShippingFee:     50,
		AppBaseURL:      "http://app.test",
		FrontendBaseURL: "http://front.test",
	}
}

// newFixture seeds user 42 with a cart totalling 250 major / 25000 minor
// units.
func newFixture() *fixture {
	f := &fixture{
		carts: cart.NewInMemoryRepository(map[int][]cart.Item{
			42: {
				{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
				{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
			},
		}),
		orders:   order.NewInMemoryRepository(),
		sessions: NewInMemorySessionStore(),
		card:     &stubCard{},
		wallet:   &stubWallet{},
	}
	f.svc = NewService(Deps{
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Carts:    cart.NewService(f.carts),
		Orders:   order.NewService(f.orders),
		Sessions: f.sessions,
		Card:     f.card,
		Wallet:   f.wallet,
		Config:   testConfig(),
	})
	return f
}

func reasonOf(t *testing.T, err error) payment.Reason {
	t.Helper()
	var pe *payment.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *payment.Error, got %v (%T)", err, err)
	}
	return pe.Reason
}

func cartSize(t *testing.T, f *fixture, userID int) int {
	t.Helper()
	items, err := f.carts.GetCart(userID)
	if err != nil {
		t.Fatalf("cart read failed: %v", err)
	}
	return len(items)
}

func TestStartCardPayment_AmountTooLow(t *testing.T) {
	f := newFixture()
	cheap, _ := decimal.NewFromString("0.49")
	f.carts = cart.NewInMemoryRepository(map[int][]cart.Item{
		7: {{ProductID: 1, Quantity: 1, UnitPrice: cheap}},
	})
	f.svc.carts = cart.NewService(f.carts)

	_, err := f.svc.StartCardPayment(context.Background(), 7, "pm_card")
	if reasonOf(t, err) != payment.ReasonAmountTooLow {
		t.Fatalf("expected amount_too_low, got %v", err)
	}
	if f.card.createCalls != 0 {
		t.Fatalf("provider must not be called for below-minimum amounts, got %d calls", f.card.createCalls)
	}
	if f.orders.Len() != 0 {
		t.Fatalf("expected no orders, got %d", f.orders.Len())
	}
}

func TestStartCardPayment_ImmediateSuccess(t *testing.T) {
	f := newFixture()
	f.card.intent = payment.Intent{ID: "pi_1", Status: payment.IntentStatusSucceeded}

	res, err := f.svc.StartCardPayment(context.Background(), 42, "pm_card")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.orders.Len() != 1 {
		t.Fatalf("expected exactly one order, got %d", f.orders.Len())
	}
	ord, _ := f.orders.GetByID(1)
	if ord.Status != order.StatusCompleted {
		t.Fatalf("expected completed order, got %s", ord.Status)
	}
	if ord.ProviderRef == nil || *ord.ProviderRef != "pi_1" {
		t.Fatalf("expected provider ref pi_1, got %+v", ord.ProviderRef)
	}
	if ord.AmountMinor != 25000 {
		t.Fatalf("expected amount 25000, got %d", ord.AmountMinor)
	}
	if cartSize(t, f, 42) != 0 {
		t.Fatal("cart must be cleared on immediate success")
	}
	if !strings.Contains(res.RedirectURL, "orderId=1") {
		t.Fatalf("redirect should point at the order, got %s", res.RedirectURL)
	}
}

func TestStartCardPayment_RequiresAction(t *testing.T) {
	f := newFixture()
	f.card.intent = payment.Intent{
		ID:            "pi_2",
		Status:        payment.IntentStatusRequiresAction,
		NextActionURL: "https://cardprovider.test/3ds",
	}

	res, err := f.svc.StartCardPayment(context.Background(), 42, "pm_card")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RedirectURL != "https://cardprovider.test/3ds" {
		t.Fatalf("expected 3ds redirect, got %s", res.RedirectURL)
	}
	if f.orders.Len() != 1 {
		t.Fatalf("expected exactly one pending order, got %d", f.orders.Len())
	}
	ord, _ := f.orders.GetByID(1)
	if ord.Status != order.StatusPending {
		t.Fatalf("expected pending order, got %s", ord.Status)
	}
	if cartSize(t, f, 42) == 0 {
		t.Fatal("cart must not be cleared while action is required")
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("expected one stored session, got %d", f.sessions.Len())
	}
}

func TestHandleCardReturn_MissingIntentID(t *testing.T) {
	f := newFixture()

	_, err := f.svc.HandleCardReturn(context.Background(), "", "sess1")
	if reasonOf(t, err) != payment.ReasonMissingCorrelation {
		t.Fatalf("expected missing_correlation, got %v", err)
	}
	if f.orders.Len() != 0 {
		t.Fatalf("expected no orders, got %d", f.orders.Len())
	}
	if f.card.retrieveCalls != 0 {
		t.Fatal("provider must not be queried without an intent id")
	}
}

func TestHandleCardReturn_CompletesPendingOrder(t *testing.T) {
	f := newFixture()
	pending, err := order.NewService(f.orders).Create(42, nil, 25000, "mad", order.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	f.sessions.Put(context.Background(), Session{
		ID: "sess1", UserID: 42, PendingOrderID: pending.OrderID, IntentID: "pi_9", AmountMinor: 25000,
	})
	f.card.retrieved = payment.Intent{ID: "pi_9", Status: payment.IntentStatusSucceeded}

	redirect, err := f.svc.HandleCardReturn(context.Background(), "pi_9", "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.orders.Len() != 1 {
		t.Fatalf("the pending order must be completed in place, got %d orders", f.orders.Len())
	}
	ord, _ := f.orders.GetByID(pending.OrderID)
	if ord.Status != order.StatusCompleted || ord.ProviderRef == nil || *ord.ProviderRef != "pi_9" {
		t.Fatalf("unexpected order after return: %+v", ord)
	}
	if cartSize(t, f, 42) != 0 {
		t.Fatal("cart must be cleared after completion")
	}
	if f.sessions.Len() != 0 {
		t.Fatal("session must be consumed")
	}
	if !strings.Contains(redirect, "orderId=1") {
		t.Fatalf("unexpected redirect %s", redirect)
	}

	// replaying the callback must not create a second order
	redirect2, err := f.svc.HandleCardReturn(context.Background(), "pi_9", "sess1")
	if err != nil {
		t.Fatalf("replay should resolve to the stored order, got %v", err)
	}
	if redirect2 != redirect {
		t.Fatalf("replay redirect mismatch: %s vs %s", redirect2, redirect)
	}
	if f.orders.Len() != 1 {
		t.Fatalf("replay created a duplicate order: %d", f.orders.Len())
	}
}

func TestHandleCardReturn_ProviderNotSucceeded(t *testing.T) {
	f := newFixture()
	f.sessions.Put(context.Background(), Session{ID: "sess1", UserID: 42, PendingOrderID: 1, IntentID: "pi_9"})
	f.card.retrieved = payment.Intent{ID: "pi_9", Status: "processing"}

	_, err := f.svc.HandleCardReturn(context.Background(), "pi_9", "sess1")
	if reasonOf(t, err) != payment.ReasonProviderRejected {
		t.Fatalf("expected provider_rejected, got %v", err)
	}
	if f.orders.Len() != 0 {
		t.Fatalf("expected no orders, got %d", f.orders.Len())
	}
}

func TestStartWalletPayment_RedirectsToApproveLink(t *testing.T) {
	f := newFixture()
	f.wallet.order = payment.WalletOrder{
		ID:     "PP1",
		Status: "CREATED",
		Links: []payment.Link{
			{Href: "https://wallet.test/self", Rel: "self"},
			{Href: "https://wallet.test/approve", Rel: "approve"},
		},
	}

	approve, err := f.svc.StartWalletPayment(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approve != "https://wallet.test/approve" {
		t.Fatalf("expected approve link by relation, got %s", approve)
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("expected one stored session, got %d", f.sessions.Len())
	}
	if f.orders.Len() != 0 {
		t.Fatal("no order may exist before capture")
	}
}

func TestStartWalletPayment_NoOrderID(t *testing.T) {
	f := newFixture()
	f.wallet.order = payment.WalletOrder{}

	_, err := f.svc.StartWalletPayment(context.Background(), 42)
	if reasonOf(t, err) != payment.ReasonProviderRejected {
		t.Fatalf("expected provider_rejected, got %v", err)
	}
}

func TestHandleWalletReturn_MissingToken(t *testing.T) {
	f := newFixture()

	_, err := f.svc.HandleWalletReturn(context.Background(), "", "sess1")
	if reasonOf(t, err) != payment.ReasonMissingCorrelation {
		t.Fatalf("expected missing_correlation, got %v", err)
	}
	if f.wallet.captureCalls != 0 {
		t.Fatal("capture must not run without a token")
	}
	if f.orders.Len() != 0 {
		t.Fatalf("expected no orders, got %d", f.orders.Len())
	}
}

func TestHandleWalletReturn_CaptureCompleted(t *testing.T) {
	f := newFixture()
	f.sessions.Put(context.Background(), Session{ID: "sess1", UserID: 42, AmountMinor: 25000})
	f.wallet.capture = payment.Capture{ID: "CAP1", Status: payment.CaptureStatusCompleted}

	redirect, err := f.svc.HandleWalletReturn(context.Background(), "PP1", "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.orders.Len() != 1 {
		t.Fatalf("expected exactly one order, got %d", f.orders.Len())
	}
	ord, _ := f.orders.GetByProviderRef("CAP1")
	if ord.Status != order.StatusCompleted || ord.AmountMinor != 25000 || ord.Currency != "USD" {
		t.Fatalf("unexpected order: %+v", ord)
	}
	if cartSize(t, f, 42) != 0 {
		t.Fatal("cart must be cleared after capture")
	}
	if f.sessions.Len() != 0 {
		t.Fatal("correlation session must be cleared after capture")
	}
	if !strings.Contains(redirect, "orderId=") {
		t.Fatalf("unexpected redirect %s", redirect)
	}

	// a replayed callback finds no session and must not create another order
	_, err = f.svc.HandleWalletReturn(context.Background(), "PP1", "sess1")
	if reasonOf(t, err) != payment.ReasonMissingCorrelation {
		t.Fatalf("expected missing_correlation on replay, got %v", err)
	}
	if f.orders.Len() != 1 {
		t.Fatalf("replay created a duplicate order: %d", f.orders.Len())
	}
}

func TestHandleWalletReturn_CaptureNotCompleted(t *testing.T) {
	f := newFixture()
	f.sessions.Put(context.Background(), Session{ID: "sess1", UserID: 42, AmountMinor: 25000})
	f.wallet.capture = payment.Capture{ID: "CAP2", Status: "DECLINED"}

	_, err := f.svc.HandleWalletReturn(context.Background(), "PP1", "sess1")
	if reasonOf(t, err) != payment.ReasonProviderRejected {
		t.Fatalf("expected provider_rejected, got %v", err)
	}
	if f.orders.Len() != 0 {
		t.Fatalf("expected no orders, got %d", f.orders.Len())
	}
}

func TestSummary(t *testing.T) {
	f := newFixture()

	sum, err := f.svc.Summary(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sum.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sum.Items))
	}
	if !sum.Total.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected total 250, got %s", sum.Total)
	}
	if sum.Shipping != 50 {
		t.Fatalf("expected flat shipping 50, got %d", sum.Shipping)
	}
}
