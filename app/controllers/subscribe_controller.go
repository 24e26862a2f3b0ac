package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mcduffy-co/mcduffy-backend/app/models"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/paymongo"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/reconcile"
)

// phPhonePattern is the storefront's accepted mobile format: +63 followed by
// ten digits.
var phPhonePattern = regexp.MustCompile(`^\+63\d{10}$`)

// SubscribeRequest is the storefront's subscription checkout payload.
type SubscribeRequest struct {
	Customer struct {
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	} `json:"customer"`
	Plan struct {
		Name          string  `json:"name"`
		Description   string  `json:"description"`
		Amount        float64 `json:"amount" validate:"required,gt=0"`
		Currency      string  `json:"currency"`
		Interval      string  `json:"interval"`
		IntervalCount int     `json:"interval_count"`
	} `json:"plan"`
	ShopifyOrder struct {
		Currency        string          `json:"currency"`
		Email           string          `json:"email"`
		LineItems       json.RawMessage `json:"lineItems"`
		Amount          float64         `json:"amount"`
		Note            string          `json:"note"`
		Tags            []string        `json:"tags"`
		ShippingAddress json.RawMessage `json:"shippingAddress"`
	} `json:"shopifyOrder"`
}

// Validate applies the struct tags plus the PH phone format check.
func (r *SubscribeRequest) Validate() error {
	v := validator.New()
	return v.Struct(r)
}

// SubscribeController stages subscriptions: it drives the processor's
// plan -> customer -> subscription chain and stores the order blueprint the
// webhook will consume once payment confirms.
type SubscribeController struct {
	payments *paymongo.Client
	store    reconcile.Store
}

// NewSubscribeController wires the subscription intake.
func NewSubscribeController(payments *paymongo.Client, store reconcile.Store) *SubscribeController {
	return &SubscribeController{payments: payments, store: store}
}

// HandleSubscribe processes POST /api/paymongo/subscribe.
func (sc *SubscribeController) HandleSubscribe(c *fiber.Ctx) error {
	var req SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_json", "detail": "request body is not valid JSON",
		})
	}

	if req.Customer.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing_fields", "detail": "customer.email is required",
		})
	}
	if req.Customer.Phone != "" && !phPhonePattern.MatchString(req.Customer.Phone) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_invalid", "detail": "Use +63 followed by 10 digits (e.g. +639171234567)",
		})
	}
	if req.Plan.Amount <= 0 || math.IsNaN(req.Plan.Amount) || math.IsInf(req.Plan.Amount, 0) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing_fields", "detail": "plan.amount (centavos) is required and must be > 0",
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation_failed", "detail": err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 45*time.Second)
	defer cancel()

	plan := paymongo.PlanInput{
		Name:          req.Plan.Name,
		Description:   req.Plan.Description,
		Amount:        int64(math.Round(req.Plan.Amount)),
		Currency:      req.Plan.Currency,
		Interval:      req.Plan.Interval,
		IntervalCount: req.Plan.IntervalCount,
	}
	if plan.Name == "" {
		plan.Name = "McDuffy Plan"
	}
	if plan.Description == "" {
		plan.Description = "Gently cooked subscription"
	}

	planID, err := sc.payments.CreatePlan(ctx, plan)
	if err != nil {
		return providerError(c, "plan_create_failed", err)
	}

	customerID, err := sc.payments.CreateCustomer(ctx, paymongo.CustomerInput{
		Email:     req.Customer.Email,
		FirstName: req.Customer.FirstName,
		LastName:  req.Customer.LastName,
		Phone:     req.Customer.Phone,
	})
	if err != nil {
		return providerError(c, "customer_create_failed", err)
	}

	sub, err := sc.payments.CreateSubscription(ctx, customerID, planID)
	if err != nil {
		return providerError(c, "subscription_create_failed", err)
	}

	intentID := sub.PaymentIntentID
	clientKey := sub.ClientKey

	// Some API versions omit the client key on the subscription response;
	// fetch the intent directly before giving up.
	if intentID != "" && clientKey == "" {
		if pi, err := sc.payments.GetPaymentIntent(ctx, intentID); err == nil {
			clientKey = pi.ClientKey
		}
	}
	if intentID == "" || clientKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "missing_payment_intent",
			"detail": "PayMongo did not return payment_intent/client_key on subscription",
		})
	}

	sc.stageBlueprint(ctx, &req, sub.ID, planID, customerID, intentID)

	return c.JSON(fiber.Map{
		"subscriptionId":  sub.ID,
		"paymentIntentId": intentID,
		"clientKey":       clientKey,
	})
}

// stageBlueprint persists the order blueprint. Failure is logged but never
// blocks the checkout response: the payment can still be reconciled manually
// from the journal.
func (sc *SubscribeController) stageBlueprint(ctx context.Context, req *SubscribeRequest, subscriptionID, planID, customerID, intentID string) {
	order := req.ShopifyOrder
	if order.Currency == "" {
		order.Currency = "PHP"
	}
	email := order.Email
	if email == "" {
		email = req.Customer.Email
	}
	amount := order.Amount
	if amount <= 0 {
		amount = req.Plan.Amount
	}

	tags, err := json.Marshal(order.Tags)
	if err != nil {
		tags = []byte("[]")
	}

	bp := &models.OrderBlueprint{
		PaymentIntentID:     intentID,
		SubscriptionID:      subscriptionID,
		PlanID:              planID,
		CustomerID:          customerID,
		Currency:            order.Currency,
		Email:               email,
		AmountCents:         int64(math.Round(amount)),
		Note:                order.Note,
		LineItemsJSON:       string(order.LineItems),
		TagsJSON:            string(tags),
		ShippingAddressJSON: string(order.ShippingAddress),
	}
	if err := sc.store.SaveBlueprint(ctx, bp); err != nil {
		log.Errorf("[Subscribe] failed to stage blueprint for intent %s: %v", intentID, err)
	}
}

// providerError maps a processor failure onto the storefront's normalized
// {error, detail, errors} payload.
func providerError(c *fiber.Ctx, code string, err error) error {
	payload := fiber.Map{"error": code, "detail": err.Error()}

	var apiErr *paymongo.APIError
	if errors.As(err, &apiErr) && len(apiErr.Errors) > 0 {
		first := apiErr.Errors[0]
		detail := first.Detail
		if ptr := first.Source.Pointer; ptr != "" {
			detail += " (" + ptr + ")"
		} else if attr := first.Source.Attribute; attr != "" {
			detail += " (" + attr + ")"
		}
		payload["detail"] = detail
		payload["errors"] = apiErr.Errors
	}
	return c.Status(fiber.StatusBadRequest).JSON(payload)
}
