package controllers

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/paymongo"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/shopify"
)

// SubscriptionsController serves the customer's subscription list and the
// pause/resume/skip/cancel actions. PayMongo only supports cancellation;
// pause and skip are tracked with Shopify order tags and the response says
// so plainly.
type SubscriptionsController struct {
	shop     *shopify.Client
	payments *paymongo.Client
}

// NewSubscriptionsController wires the subscription management endpoints.
func NewSubscriptionsController(shop *shopify.Client, payments *paymongo.Client) *SubscriptionsController {
	return &SubscriptionsController{shop: shop, payments: payments}
}

// SubscriptionView is the frontend's subscription row, derived from a
// Shopify order.
type SubscriptionView struct {
	ID                      string `json:"id"`
	OrderID                 string `json:"order_id"`
	OrderName               string `json:"order_name"`
	PayMongoSubscriptionID  string `json:"paymongo_subscription_id"`
	Status                  string `json:"status"`
	Provider                string `json:"provider"`
	Recipe                  string `json:"recipe"`
	PlanName                string `json:"plan_name"`
	AmountCents             int64  `json:"amount"`
	Currency                string `json:"currency"`
	CreatedAt               string `json:"created_at"`
	NextBillingDate         string `json:"next_billing_date"`
}

// HandleListSubscriptions processes GET /api/subscriptions?email=...
func (sc *SubscriptionsController) HandleListSubscriptions(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required", "subscriptions": []SubscriptionView{},
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	orders, err := sc.shop.SearchOrdersByEmail(ctx, email)
	if err != nil {
		log.Errorf("[Subscriptions] order search failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load subscriptions", "subscriptions": []SubscriptionView{},
		})
	}

	views := make([]SubscriptionView, 0, len(orders))
	for _, order := range orders {
		if !looksLikeSubscriptionOrder(order) {
			continue
		}
		views = append(views, toSubscriptionView(order))
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"email":         email,
		"subscriptions": views,
	})
}

// looksLikeSubscriptionOrder filters the order list down to rows created by
// the subscription flow: tag/note markers, or the shop's food products.
func looksLikeSubscriptionOrder(order shopify.OrderSummary) bool {
	for _, tag := range order.Tags {
		lower := strings.ToLower(tag)
		if strings.Contains(lower, "subscription") ||
			strings.Contains(lower, "paymongo") ||
			strings.Contains(lower, "recurring") {
			return true
		}
	}

	note := strings.ToLower(order.Note)
	if strings.Contains(note, "paymongo") ||
		strings.Contains(note, "subscription") ||
		strings.Contains(note, "recurring") {
		return true
	}

	for _, title := range order.LineItemTitles {
		lower := strings.ToLower(title)
		if strings.Contains(lower, "mcduffy") ||
			strings.Contains(lower, "fresh") ||
			strings.Contains(lower, "gently cooked") ||
			strings.Contains(lower, "home cooked") ||
			strings.Contains(lower, "dog food") {
			return true
		}
	}
	return false
}

func toSubscriptionView(order shopify.OrderSummary) SubscriptionView {
	view := SubscriptionView{
		OrderID:   order.ID,
		OrderName: order.Name,
		Provider:  "card",
		Status:    "active",
		PlanName:  "McDuffy Subscription",
		Currency:  "PHP",
		CreatedAt: order.CreatedAt,
	}

	view.ID = strings.TrimPrefix(order.ID, "gid://shopify/Order/")
	if recipe, ok := order.CustomAttributes["recipe"]; ok {
		view.Recipe = recipe
	}
	if provider, ok := order.CustomAttributes["provider"]; ok {
		view.Provider = provider
	}
	// The subscription id lands under either key depending on storefront
	// version.
	for _, key := range []string{"subscription_id", "paymongo_subscription_id"} {
		if id, ok := order.CustomAttributes[key]; ok && id != "" {
			view.PayMongoSubscriptionID = id
			break
		}
	}
	if len(order.LineItemTitles) > 0 && order.LineItemTitles[0] != "" {
		view.PlanName = order.LineItemTitles[0]
	}
	for _, tag := range order.Tags {
		switch tag {
		case "cancelled":
			view.Status = "cancelled"
		case "paused":
			view.Status = "suspended"
		}
	}
	if order.CurrencyCode != "" {
		view.Currency = order.CurrencyCode
	}
	if amount, err := strconv.ParseFloat(order.Amount, 64); err == nil {
		view.AmountCents = int64(math.Round(amount * 100))
	}
	if created, err := time.Parse(time.RFC3339, order.CreatedAt); err == nil {
		view.NextBillingDate = nextBillingDate(created, time.Now()).Format(time.RFC3339)
	}
	return view
}

// nextBillingDate rolls the creation date forward a month at a time until it
// passes now.
func nextBillingDate(created, now time.Time) time.Time {
	next := created
	for !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}

type subscriptionActionRequest struct {
	Email                  string `json:"email"`
	PayMongoSubscriptionID string `json:"paymongoSubscriptionId"`
	Reason                 string `json:"reason"`
}

// HandlePause processes POST /api/subscriptions/:id/pause. PayMongo cannot
// pause a subscription, so this only tags the Shopify order; the customer
// keeps being charged until support steps in.
func (sc *SubscriptionsController) HandlePause(c *fiber.Ctx) error {
	orderID := c.Params("id")
	log.Warnf("[SubscriptionActions] Pause requested for %s: PayMongo does not support pause, only updating Shopify tags", orderID)

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	if err := sc.shop.AddOrderTags(ctx, orderID, "paused"); err != nil {
		return actionFailed(c, "Failed to pause subscription", err)
	}
	if err := sc.shop.RemoveOrderTags(ctx, orderID, "active"); err != nil {
		log.Warnf("[SubscriptionActions] failed to drop active tag on %s: %v", orderID, err)
	}
	note := "Subscription paused by customer on " + time.Now().UTC().Format(time.RFC3339) +
		". NOTE: PayMongo subscription is still active - manual cancellation may be needed."
	if err := sc.shop.UpdateOrderNote(ctx, orderID, note); err != nil {
		log.Warnf("[SubscriptionActions] failed to note pause on %s: %v", orderID, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Subscription paused successfully. Note: Contact support if you need to stop charges.",
		"status":  "paused",
		"warning": "PayMongo does not support pausing. Contact support to fully stop charges.",
	})
}

// HandleResume processes POST /api/subscriptions/:id/resume.
func (sc *SubscriptionsController) HandleResume(c *fiber.Ctx) error {
	orderID := c.Params("id")

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	if err := sc.shop.RemoveOrderTags(ctx, orderID, "paused"); err != nil {
		return actionFailed(c, "Failed to resume subscription", err)
	}
	if err := sc.shop.AddOrderTags(ctx, orderID, "active"); err != nil {
		return actionFailed(c, "Failed to resume subscription", err)
	}
	note := "Subscription resumed by customer on " + time.Now().UTC().Format(time.RFC3339)
	if err := sc.shop.UpdateOrderNote(ctx, orderID, note); err != nil {
		log.Warnf("[SubscriptionActions] failed to note resume on %s: %v", orderID, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Subscription resumed successfully",
		"status":  "active",
	})
}

// HandleSkip processes POST /api/subscriptions/:id/skip. Like pause, this is
// tag-only tracking; the payment schedule is unchanged.
func (sc *SubscriptionsController) HandleSkip(c *fiber.Ctx) error {
	orderID := c.Params("id")
	log.Warnf("[SubscriptionActions] Skip requested for %s: PayMongo does not support skip, only updating Shopify tags", orderID)

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	if err := sc.shop.AddOrderTags(ctx, orderID, "skipped-next"); err != nil {
		return actionFailed(c, "Failed to skip delivery", err)
	}
	note := "Next delivery skipped by customer on " + time.Now().UTC().Format(time.RFC3339) +
		". NOTE: Payment may still process - manual adjustment needed."
	if err := sc.shop.UpdateOrderNote(ctx, orderID, note); err != nil {
		log.Warnf("[SubscriptionActions] failed to note skip on %s: %v", orderID, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Next delivery marked as skipped. Our team will adjust your order.",
		"warning": "Payment schedule unchanged. Our team will process any refunds if needed.",
	})
}

// HandleCancel processes POST /api/subscriptions/:id/cancel. This is the one
// action that actually reaches PayMongo: cancellation stops future charges.
// Shopify tagging proceeds even when the processor call fails, since the id
// may be stale or already cancelled.
func (sc *SubscriptionsController) HandleCancel(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var req subscriptionActionRequest
	_ = c.BodyParser(&req)

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	paymongoCancelled := false
	if req.PayMongoSubscriptionID != "" {
		if err := sc.payments.CancelSubscription(ctx, req.PayMongoSubscriptionID, req.Reason); err != nil {
			log.Errorf("[SubscriptionActions] failed to cancel PayMongo subscription %s: %v", req.PayMongoSubscriptionID, err)
		} else {
			paymongoCancelled = true
			log.Infof("[SubscriptionActions] Cancelled PayMongo subscription %s", req.PayMongoSubscriptionID)
		}
	} else {
		log.Warnf("[SubscriptionActions] No PayMongo subscription id provided for %s; only updating Shopify", orderID)
	}

	if err := sc.shop.AddOrderTags(ctx, orderID, "cancelled"); err != nil {
		return actionFailed(c, "Failed to cancel subscription", err)
	}
	if err := sc.shop.RemoveOrderTags(ctx, orderID, "active", "paused"); err != nil {
		log.Warnf("[SubscriptionActions] failed to drop tags on %s: %v", orderID, err)
	}

	when := time.Now().UTC().Format(time.RFC3339)
	note := "Subscription cancelled by customer on " + when + ". NOTE: PayMongo subscription may need manual cancellation."
	message := "Subscription marked as cancelled. Please contact support to confirm no further charges."
	if paymongoCancelled {
		note = "Subscription cancelled by customer on " + when + ". PayMongo subscription (" + req.PayMongoSubscriptionID + ") also cancelled."
		message = "Subscription cancelled successfully. No further charges will occur."
	}
	if err := sc.shop.UpdateOrderNote(ctx, orderID, note); err != nil {
		log.Warnf("[SubscriptionActions] failed to note cancel on %s: %v", orderID, err)
	}

	return c.JSON(fiber.Map{
		"success":           true,
		"message":           message,
		"status":            "cancelled",
		"paymongoCancelled": paymongoCancelled,
	})
}

func actionFailed(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[SubscriptionActions] %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   message,
		"message": err.Error(),
	})
}
