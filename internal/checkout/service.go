package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medinashop/checkout-backend/internal/cart"
	"github.com/medinashop/checkout-backend/internal/config"
	"github.com/medinashop/checkout-backend/internal/events"
	"github.com/medinashop/checkout-backend/internal/order"
	"github.com/medinashop/checkout-backend/internal/payment"
)

// Provider labels used on emitted events.
const (
	ProviderCard   = "card"
	ProviderWallet = "wallet"
)

// Service drives a cart through one of the two provider protocols to a
// terminal order state. All failures come back as *payment.Error so the
// handler can log the detail and show the client a generic message.
type Service struct {
	log      *slog.Logger
	carts    *cart.Service
	orders   *order.Service
	sessions SessionStore
	card     payment.CardProvider
	wallet   payment.WalletProvider
	producer *events.Producer
	cfg      config.Config
}

// Deps bundles the collaborators the orchestrator needs.
type Deps struct {
	Log      *slog.Logger
	Carts    *cart.Service
	Orders   *order.Service
	Sessions SessionStore
	Card     payment.CardProvider
	Wallet   payment.WalletProvider
	Producer *events.Producer
	Config   config.Config
}

func NewService(d Deps) *Service {
	return &Service{
		log:      d.Log,
		carts:    d.Carts,
		orders:   d.Orders,
		sessions: d.Sessions,
		card:     d.Card,
		wallet:   d.Wallet,
		producer: d.Producer,
		cfg:      d.Config,
	}
}

// Summary is what the checkout page renders.
type Summary struct {
	Items    []cart.Item     `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Shipping int64           `json:"shipping"`
}

func (s *Service) Summary(userID int) (Summary, error) {
	items, err := s.carts.GetCart(userID)
	if err != nil {
		return Summary{}, payment.NewError(payment.ReasonPersistenceFailure, "could not load cart", err)
	}
	total, _ := cart.Totals(items)
	return Summary{Items: items, Total: total, Shipping: s.cfg.ShippingFee}, nil
}

// StartCardResult tells the browser where to go next: either the
// provider's additional-authentication page or straight to the success
// view.
type StartCardResult struct {
	RedirectURL string `json:"redirect_url"`
}

// StartCardPayment runs the direct-capture path: one provider call creates
// and confirms the charge. A pending order is persisted before the outcome
// is known; the cart survives until the payment is confirmed.
func (s *Service) StartCardPayment(ctx context.Context, userID int, paymentMethod string) (StartCardResult, error) {
	items, err := s.carts.GetCart(userID)
	if err != nil {
		return StartCardResult{}, payment.NewError(payment.ReasonPersistenceFailure, "could not load cart", err)
	}
	_, minor := cart.Totals(items)
	if minor < payment.MinimumChargeMinor {
		return StartCardResult{}, payment.NewError(payment.ReasonAmountTooLow,
			"the amount is below the minimum charge amount allowed", nil)
	}

	sid := uuid.NewString()
	returnURL := fmt.Sprintf("%s/api/v1/checkout/card/return?session=%s", s.cfg.AppBaseURL, sid)
	intent, err := s.card.CreateAndConfirmIntent(ctx, minor, s.cfg.CardCurrency, paymentMethod, returnURL)
	if err != nil {
		return StartCardResult{}, s.classify(err, "card authorization failed")
	}

	ord, err := s.orders.Create(userID, nil, minor, s.cfg.CardCurrency, order.StatusPending)
	if err != nil {
		return StartCardResult{}, payment.NewError(payment.ReasonPersistenceFailure, "order could not be created", err)
	}

	switch intent.Status {
	case payment.IntentStatusRequiresAction:
		if intent.NextActionURL == "" {
			return StartCardResult{}, payment.NewError(payment.ReasonProviderRejected,
				"provider requires action but sent no redirect", nil)
		}
		sess := Session{
			ID:             sid,
			UserID:         userID,
			PendingOrderID: ord.OrderID,
			IntentID:       intent.ID,
			AmountMinor:    minor,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.sessions.Put(ctx, sess); err != nil {
			return StartCardResult{}, payment.NewError(payment.ReasonPersistenceFailure, "could not store checkout session", err)
		}
		return StartCardResult{RedirectURL: intent.NextActionURL}, nil

	case payment.IntentStatusSucceeded:
		done, err := s.orders.Complete(ord.OrderID, intent.ID)
		if err != nil {
			return StartCardResult{}, payment.NewError(payment.ReasonPersistenceFailure, "order could not be completed", err)
		}
		s.finish(done, ProviderCard)
		return StartCardResult{RedirectURL: s.successURL(done.OrderID)}, nil

	default:
		s.emitFailed(userID, ProviderCard, intent.Status)
		return StartCardResult{}, payment.NewError(payment.ReasonProviderRejected,
			fmt.Sprintf("unexpected intent status %q", intent.Status), nil)
	}
}

// HandleCardReturn is the second entry point of the card path, reached
// when the provider sends the browser back after additional
// authentication. It completes the pending order created at start time.
func (s *Service) HandleCardReturn(ctx context.Context, intentID, sessionID string) (string, error) {
	if intentID == "" {
		return "", payment.NewError(payment.ReasonMissingCorrelation, "missing payment intent reference", nil)
	}

	intent, err := s.card.RetrieveIntent(ctx, intentID)
	if err != nil {
		return "", s.classify(err, "could not retrieve payment intent")
	}
	if intent.Status != payment.IntentStatusSucceeded {
		s.emitFailed(0, ProviderCard, intent.Status)
		return "", payment.NewError(payment.ReasonProviderRejected,
			fmt.Sprintf("payment not completed, intent status %q", intent.Status), nil)
	}

	sess, serr := s.sessions.Get(ctx, sessionID)
	if serr != nil {
		// replayed callback after the session was consumed: the order is
		// already there, point the browser at it again
		if ord, oerr := s.orders.GetByProviderRef(intent.ID); oerr == nil {
			return s.successURL(ord.OrderID), nil
		}
		return "", payment.NewError(payment.ReasonMissingCorrelation, "no checkout session for returning payment", serr)
	}

	ord, err := s.orders.Complete(sess.PendingOrderID, intent.ID)
	if errors.Is(err, order.ErrNotFound) {
		// pending row is gone; idempotent insert keyed on the intent id
		ord, err = s.orders.Create(sess.UserID, &intent.ID, sess.AmountMinor, s.cfg.CardCurrency, order.StatusCompleted)
	}
	if err != nil {
		return "", payment.NewError(payment.ReasonPersistenceFailure, "order could not be created", err)
	}

	s.dropSession(ctx, sess.ID)
	s.finish(ord, ProviderCard)
	return s.successURL(ord.OrderID), nil
}

// StartWalletPayment runs phase one of the two-phase path: create a
// provider order and send the user to its approval page.
func (s *Service) StartWalletPayment(ctx context.Context, userID int) (string, error) {
	items, err := s.carts.GetCart(userID)
	if err != nil {
		return "", payment.NewError(payment.ReasonPersistenceFailure, "could not load cart", err)
	}
	major, minor := cart.Totals(items)
	if minor < payment.MinimumChargeMinor {
		return "", payment.NewError(payment.ReasonAmountTooLow,
			"the amount is below the minimum charge amount allowed", nil)
	}

	sess := Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountMinor: minor,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return "", payment.NewError(payment.ReasonPersistenceFailure, "could not store checkout session", err)
	}

	wo, err := s.wallet.CreateOrder(ctx, payment.CreateWalletOrderRequest{
		ReferenceID: fmt.Sprintf("txn_user_%d", userID),
		Currency:    s.cfg.WalletCurrency,
		Value:       major.StringFixed(2),
		CancelURL:   s.cancelURL(),
		ReturnURL:   fmt.Sprintf("%s/api/v1/checkout/wallet/return?session=%s", s.cfg.AppBaseURL, sess.ID),
	})
	if err != nil {
		return "", s.classify(err, "wallet order creation failed")
	}
	if wo.ID == "" {
		return "", payment.NewError(payment.ReasonProviderRejected, "wallet provider returned no order id", nil)
	}
	approve, ok := wo.ApproveLink()
	if !ok {
		return "", payment.NewError(payment.ReasonProviderRejected, "wallet provider returned no approval link", nil)
	}
	return approve, nil
}

// HandleWalletReturn is phase two: capture the approved order and persist
// the result.
func (s *Service) HandleWalletReturn(ctx context.Context, token, sessionID string) (string, error) {
	if token == "" {
		return "", payment.NewError(payment.ReasonMissingCorrelation, "missing wallet provider token", nil)
	}

	sess, serr := s.sessions.Get(ctx, sessionID)
	if serr != nil {
		return "", payment.NewError(payment.ReasonMissingCorrelation, "no checkout session for returning payment", serr)
	}

	capture, err := s.wallet.CaptureOrder(ctx, token)
	if err != nil {
		return "", s.classify(err, "wallet capture failed")
	}
	if capture.Status != payment.CaptureStatusCompleted {
		s.emitFailed(sess.UserID, ProviderWallet, capture.Status)
		return "", payment.NewError(payment.ReasonProviderRejected,
			fmt.Sprintf("wallet capture status %q", capture.Status), nil)
	}

	ord, err := s.orders.Create(sess.UserID, &capture.ID, sess.AmountMinor, s.cfg.WalletCurrency, order.StatusCompleted)
	if err != nil {
		return "", payment.NewError(payment.ReasonPersistenceFailure, "order could not be created", err)
	}

	s.dropSession(ctx, sess.ID)
	s.finish(ord, ProviderWallet)
	return s.successURL(ord.OrderID), nil
}

// SuccessOrder looks up the order behind a success view.
func (s *Service) SuccessOrder(orderID int) (order.Order, error) {
	ord, err := s.orders.GetByID(orderID)
	if errors.Is(err, order.ErrNotFound) {
		return order.Order{}, payment.NewError(payment.ReasonNotFound, "order not found", err)
	}
	if err != nil {
		return order.Order{}, payment.NewError(payment.ReasonPersistenceFailure, "could not load order", err)
	}
	return ord, nil
}

// finish runs the completion side effects: clear the cart and emit the
// terminal event. Neither may fail the checkout at this point; the order
// is already completed.
func (s *Service) finish(ord order.Order, provider string) {
	if err := s.carts.ClearCart(ord.UserID); err != nil {
		s.log.Error("cart clear failed", "userID", ord.UserID, "error", err)
	}
	ref := ""
	if ord.ProviderRef != nil {
		ref = *ord.ProviderRef
	}
	s.producer.Emit(events.TypeCheckoutCompleted, strconv.Itoa(ord.OrderID), events.CheckoutCompletedPayload{
		OrderID:     ord.OrderID,
		UserID:      ord.UserID,
		AmountMinor: ord.AmountMinor,
		Currency:    ord.Currency,
		Provider:    provider,
		ProviderRef: ref,
	})
}

func (s *Service) emitFailed(userID int, provider, reason string) {
	s.producer.Emit(events.TypeCheckoutFailed, "", events.CheckoutFailedPayload{
		UserID:   userID,
		Provider: provider,
		Reason:   reason,
	})
}

func (s *Service) dropSession(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		s.log.Error("checkout session delete failed", "session", id, "error", err)
	}
}

func (s *Service) successURL(orderID int) string {
	return fmt.Sprintf("%s/checkout/success?orderId=%d", s.cfg.FrontendBaseURL, orderID)
}

func (s *Service) cancelURL() string {
	return s.cfg.FrontendBaseURL + "/checkout/cancel"
}

// classify passes through already-classified provider errors and wraps
// anything else as a provider rejection.
func (s *Service) classify(err error, msg string) error {
	var pe *payment.Error
	if errors.As(err, &pe) {
		return pe
	}
	return payment.NewError(payment.ReasonProviderRejected, msg, err)
}
