package paymongo

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		SecretKey:  "sk_test_abc",
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestCreateSubscription_ExtractsIntentAndClientKey(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("sk_test_abc:"))
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Fatalf("authorization = %q, want %q", got, wantAuth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"id": "sub_1",
				"attributes": {
					"latest_invoice": {
						"data": {
							"attributes": {
								"payment_intent": {
									"id": "pi_1",
									"attributes": { "client_key": "pi_1_client_xyz" }
								}
							}
						}
					}
				}
			}
		}`))
	})

	sub, err := client.CreateSubscription(context.Background(), "cus_1", "plan_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ID != "sub_1" {
		t.Fatalf("id = %q, want sub_1", sub.ID)
	}
	if sub.PaymentIntentID != "pi_1" {
		t.Fatalf("intent = %q, want pi_1", sub.PaymentIntentID)
	}
	if sub.ClientKey != "pi_1_client_xyz" {
		t.Fatalf("client key = %q, want pi_1_client_xyz", sub.ClientKey)
	}
}

func TestCreateSubscription_MissingIntentIsNotAnError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"sub_2","attributes":{}}}`))
	})

	sub, err := client.CreateSubscription(context.Background(), "cus_1", "plan_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.PaymentIntentID != "" || sub.ClientKey != "" {
		t.Fatalf("expected empty intent fields, got %q / %q", sub.PaymentIntentID, sub.ClientKey)
	}
}

func TestCall_DecodesAPIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"code":"parameter_invalid","detail":"amount is below minimum","source":{"pointer":"/data/attributes/amount","attribute":"amount"}}]}`))
	})

	_, err := client.CreatePlan(context.Background(), PlanInput{Name: "x", Amount: 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", apiErr.Status)
	}
	if len(apiErr.Errors) != 1 || apiErr.Errors[0].Code != "parameter_invalid" {
		t.Fatalf("unexpected errors: %+v", apiErr.Errors)
	}
	if apiErr.Errors[0].Source.Attribute != "amount" {
		t.Fatalf("source attribute = %q, want amount", apiErr.Errors[0].Source.Attribute)
	}
}

func TestGetPaymentIntent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment_intents/pi_9" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"id":"pi_9","attributes":{"status":"succeeded","client_key":"pi_9_ck"}}}`))
	})

	pi, err := client.GetPaymentIntent(context.Background(), "pi_9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pi.Status != "succeeded" || pi.ClientKey != "pi_9_ck" {
		t.Fatalf("unexpected intent: %+v", pi)
	}

	if _, err := client.GetPaymentIntent(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank id")
	}
}

func TestClient_MissingSecretKey(t *testing.T) {
	client := &Client{HTTPClient: http.DefaultClient, BaseURL: "http://127.0.0.1:0"}
	if _, err := client.CreateCustomer(context.Background(), CustomerInput{Email: "a@b.c"}); err == nil {
		t.Fatalf("expected error when secret key is unset")
	}
}
