package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/paymongo"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/reconcile"
)

// OrderController is the storefront's fallback fulfillment path: after the
// customer completes 3DS, the frontend calls it instead of waiting for the
// webhook. It shares the reconciler's per-key locking and ledger, so the two
// entry points cannot double-fulfill the same payment.
type OrderController struct {
	payments   *paymongo.Client
	reconciler *reconcile.Reconciler
}

// NewOrderController wires the fallback order endpoint.
func NewOrderController(payments *paymongo.Client, reconciler *reconcile.Reconciler) *OrderController {
	return &OrderController{payments: payments, reconciler: reconciler}
}

type createOrderRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// HandleCreateOrder processes POST /api/shopify/create-order. Unlike the
// webhook path the payment outcome is not attested by a signed event, so the
// intent's status is verified with the processor first.
func (oc *OrderController) HandleCreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil || req.PaymentIntentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "paymentIntentId is required",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 45*time.Second)
	defer cancel()

	pi, err := oc.payments.GetPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		log.Errorf("[CreateOrder] payment intent lookup failed for %s: %v", req.PaymentIntentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create order", "detail": err.Error(),
		})
	}
	if pi.Status != "succeeded" {
		message := "Payment status: " + pi.Status
		if pi.Status == "awaiting_payment_method" {
			message = "Payment not yet completed"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Payment not successful",
			"status":  pi.Status,
			"message": message,
		})
	}

	order, outcome, err := oc.reconciler.FulfillPayment(ctx, "", req.PaymentIntentID,
		"PayMongo PI: "+req.PaymentIntentID, []string{"subscription-frontend"})

	switch outcome {
	case reconcile.OutcomeDuplicate:
		return c.JSON(fiber.Map{"success": true, "message": "Order already created"})
	case reconcile.OutcomeNoBlueprint:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Order blueprint not found",
			"message": "No order data found for this payment. Please contact support.",
		})
	case reconcile.OutcomeFulfilled:
		log.Infof("[CreateOrder] Order created successfully: %s %s", order.ID, order.Name)
		return c.JSON(fiber.Map{
			"success":   true,
			"orderId":   order.ID,
			"orderName": order.Name,
			"message":   "Order created successfully",
		})
	default:
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create order", "detail": detail,
		})
	}
}
