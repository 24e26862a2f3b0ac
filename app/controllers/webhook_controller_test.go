package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcduffy-co/mcduffy-backend/app/models"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/reconcile"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/shopify"
)

const webhookTestSecret = "whsk_controller_test"

type stubStore struct {
	mu         sync.Mutex
	processed  map[string]bool
	blueprints map[string]*models.OrderBlueprint
}

func newStubStore() *stubStore {
	return &stubStore{processed: map[string]bool{}, blueprints: map[string]*models.OrderBlueprint{}}
}

func (s *stubStore) IsProcessed(_ context.Context, paymentID, paymentIntentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[paymentID] || s.processed[paymentIntentID], nil
}

func (s *stubStore) MarkProcessed(_ context.Context, paymentID, paymentIntentID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paymentID != "" {
		s.processed[paymentID] = true
	}
	if paymentIntentID != "" {
		s.processed[paymentIntentID] = true
	}
	return nil
}

func (s *stubStore) SaveBlueprint(_ context.Context, bp *models.OrderBlueprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blueprints[bp.PaymentIntentID] = bp
	return nil
}

func (s *stubStore) GetBlueprint(_ context.Context, paymentIntentID string) (*models.OrderBlueprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, ok := s.blueprints[paymentIntentID]
	if !ok {
		return nil, reconcile.ErrBlueprintNotFound
	}
	return bp, nil
}

func (s *stubStore) RecordDelivery(_ context.Context, delivery *models.WebhookDelivery) error {
	delivery.ID = 1
	return nil
}

func (s *stubStore) FinishDelivery(_ context.Context, _ uint, _ string, _ error) error {
	return nil
}

type stubGateway struct {
	calls int
}

func (g *stubGateway) CreatePaidOrder(_ context.Context, _ shopify.OrderInput) (*shopify.Order, error) {
	g.calls++
	return &shopify.Order{ID: "gid://shopify/Order/42", Name: "#1042"}, nil
}

func webhookTestApp(store *stubStore, gateway *stubGateway) *fiber.App {
	reconciler := reconcile.New(store, gateway, webhookTestSecret)
	controller := NewWebhookController(reconciler, nil)

	app := fiber.New()
	app.Post("/api/paymongo/webhook", controller.HandlePayMongoWebhook)
	return app
}

func signWebhookBody(body []byte) string {
	ts := "1700000000"
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	fmt.Fprintf(mac, "%s.%s", ts, body)
	return fmt.Sprintf("t=%s,te=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func paidEventBody(paymentID, intentID string) []byte {
	return []byte(fmt.Sprintf(`{"data":{"attributes":{"type":"payment.paid","livemode":false,"data":{"id":%q,"attributes":{"payment_intent_id":%q}}}}}`, paymentID, intentID))
}

func TestHandlePayMongoWebhook_Fulfills(t *testing.T) {
	store := newStubStore()
	store.blueprints["pi_1"] = &models.OrderBlueprint{
		PaymentIntentID: "pi_1",
		Currency:        "PHP",
		Email:           "ana@example.com",
		AmountCents:     249900,
		LineItemsJSON:   `[{"title":"Fresh Chicken Plan","quantity":1}]`,
	}
	gateway := &stubGateway{}
	app := webhookTestApp(store, gateway)

	body := paidEventBody("pay_1", "pi_1")
	req := httptest.NewRequest(fiber.MethodPost, "/api/paymongo/webhook", bytes.NewReader(body))
	req.Header.Set("Paymongo-Signature", signWebhookBody(body))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, gateway.calls)
	assert.True(t, store.processed["pay_1"])
	assert.True(t, store.processed["pi_1"])
}

func TestHandlePayMongoWebhook_DuplicateStillAcked(t *testing.T) {
	store := newStubStore()
	store.processed["pi_1"] = true
	gateway := &stubGateway{}
	app := webhookTestApp(store, gateway)

	body := paidEventBody("pay_1", "pi_1")
	req := httptest.NewRequest(fiber.MethodPost, "/api/paymongo/webhook", bytes.NewReader(body))
	req.Header.Set("Paymongo-Signature", signWebhookBody(body))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, gateway.calls)
}

func TestHandlePayMongoWebhook_BadSignature(t *testing.T) {
	app := webhookTestApp(newStubStore(), &stubGateway{})

	body := paidEventBody("pay_1", "pi_1")
	req := httptest.NewRequest(fiber.MethodPost, "/api/paymongo/webhook", bytes.NewReader(body))
	req.Header.Set("Paymongo-Signature", "t=1700000000,te=deadbeef")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandlePayMongoWebhook_MalformedJSON(t *testing.T) {
	app := webhookTestApp(newStubStore(), &stubGateway{})

	req := httptest.NewRequest(fiber.MethodPost, "/api/paymongo/webhook", bytes.NewReader([]byte(`{"data":`)))
	req.Header.Set("Paymongo-Signature", "t=1,te=ab")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandlePayMongoWebhook_MissingBlueprintAcked(t *testing.T) {
	app := webhookTestApp(newStubStore(), &stubGateway{})

	body := paidEventBody("pay_1", "pi_missing")
	req := httptest.NewRequest(fiber.MethodPost, "/api/paymongo/webhook", bytes.NewReader(body))
	req.Header.Set("Paymongo-Signature", signWebhookBody(body))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
