package checkout

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/medinashop/checkout-backend/internal/auth"
	"github.com/medinashop/checkout-backend/internal/order"
	"github.com/medinashop/checkout-backend/internal/payment"
)

// clientErrorMessage is the only failure text clients ever see; the real
// reason goes to the log.
const clientErrorMessage = "Payment failed. Please try again."

// Handler wires the orchestrator to the HTTP surface. Provider return
// callbacks and the terminal views are public routes: the browser arrives
// there from a provider redirect without a bearer token, and the checkout
// session carries the user identity instead.
type Handler struct {
	service *Service
	orders  *order.Service
	log     *slog.Logger
}

func NewHandler(s *Service, orders *order.Service, log *slog.Logger) *Handler {
	return &Handler{service: s, orders: orders, log: log}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/checkout/card/return", h.cardReturn)
	app.Get("/api/v1/checkout/wallet/return", h.walletReturn)
	app.Get("/api/v1/checkout/success/:orderId", h.success)
	app.Get("/api/v1/checkout/cancel", h.cancel)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/checkout", h.getCheckout)
	app.Post("/api/v1/checkout/card", h.startCardPayment)
	app.Post("/api/v1/checkout/wallet", h.startWalletPayment)
	app.Get("/api/v1/orders", h.getOrders)
}

func (h *Handler) getCheckout(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	summary, err := h.service.Summary(userID)
	if err != nil {
		h.logFailure("checkout summary", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load checkout"})
	}
	return c.JSON(summary)
}

type startCardRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) startCardPayment(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(startCardRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.PaymentMethod == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "payment_method is required"})
	}

	res, err := h.service.StartCardPayment(c.Context(), userID, payload.PaymentMethod)
	if err != nil {
		return h.paymentFailed(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) cardReturn(c *fiber.Ctx) error {
	redirect, err := h.service.HandleCardReturn(c.Context(), c.Query("payment_intent"), c.Query("session"))
	if err != nil {
		return h.cancelRedirect(c, err)
	}
	return c.Redirect(redirect, fiber.StatusFound)
}

func (h *Handler) startWalletPayment(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	approveURL, err := h.service.StartWalletPayment(c.Context(), userID)
	if err != nil {
		return h.paymentFailed(c, err)
	}
	return c.Redirect(approveURL, fiber.StatusFound)
}

func (h *Handler) walletReturn(c *fiber.Ctx) error {
	redirect, err := h.service.HandleWalletReturn(c.Context(), c.Query("token"), c.Query("session"))
	if err != nil {
		return h.cancelRedirect(c, err)
	}
	return c.Redirect(redirect, fiber.StatusFound)
}

func (h *Handler) success(c *fiber.Ctx) error {
	orderID, err := strconv.Atoi(c.Params("orderId"))
	if err != nil {
		return c.Redirect(h.service.cancelURL()+"?error=Order+not+found.", fiber.StatusFound)
	}

	ord, err := h.service.SuccessOrder(orderID)
	if err != nil {
		h.logFailure("success view", err)
		return c.Redirect(h.service.cancelURL()+"?error=Order+not+found.", fiber.StatusFound)
	}
	return c.JSON(ord)
}

// cancel has no precondition and no side effects.
func (h *Handler) cancel(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Payment cancelled."})
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	orders, err := h.orders.ListByUser(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

// paymentFailed is the uniform terminal failure for the JSON endpoints:
// log the classified reason, answer 400 with a generic message.
func (h *Handler) paymentFailed(c *fiber.Ctx, err error) error {
	h.logFailure("payment", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": clientErrorMessage})
}

// cancelRedirect is the browser-navigated variant: log, then send the
// user to the cancel view with a generic flash message.
func (h *Handler) cancelRedirect(c *fiber.Ctx, err error) error {
	h.logFailure("payment return", err)
	return c.Redirect(h.service.cancelURL()+"?error=Payment+failed.", fiber.StatusFound)
}

func (h *Handler) logFailure(op string, err error) {
	var pe *payment.Error
	if errors.As(err, &pe) {
		h.log.Error(op+" failed", "reason", string(pe.Reason), "detail", pe.Message, "error", pe.Err)
		return
	}
	h.log.Error(op+" failed", "error", err)
}
