package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testShopClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		Shop:        strings.TrimPrefix(srv.URL, "https://"),
		AccessToken: "shpat_test",
		APIVersion:  "2025-10",
		HTTPClient:  srv.Client(),
	}
}

func TestToMailingAddress(t *testing.T) {
	tests := []struct {
		name         string
		addr         ShippingAddress
		wantProvince string
		wantCountry  string
	}{
		{
			name:         "defaults fill in",
			addr:         ShippingAddress{Address1: "12 Mabini St", City: "Makati"},
			wantProvince: "Metro Manila",
			wantCountry:  "PH",
		},
		{
			name:         "province preferred over code",
			addr:         ShippingAddress{Province: "Cebu", ProvinceCode: "CEB", CountryCode: "PH"},
			wantProvince: "Cebu",
			wantCountry:  "PH",
		},
		{
			name:         "province code used when name empty",
			addr:         ShippingAddress{ProvinceCode: "CEB", CountryCode: "PH"},
			wantProvince: "CEB",
			wantCountry:  "PH",
		},
		{
			name:         "country name PH forces code",
			addr:         ShippingAddress{Province: "Davao", Country: "PH", CountryCode: "US"},
			wantProvince: "Davao",
			wantCountry:  "PH",
		},
	}

	for _, tt := range tests {
		got := tt.addr.toMailingAddress()
		if got["provinceCode"] != tt.wantProvince {
			t.Fatalf("%s: provinceCode = %v, want %q", tt.name, got["provinceCode"], tt.wantProvince)
		}
		if got["countryCode"] != tt.wantCountry {
			t.Fatalf("%s: countryCode = %v, want %q", tt.name, got["countryCode"], tt.wantCountry)
		}
	}
}

func TestOrderGID(t *testing.T) {
	if got := orderGID("12345"); got != "gid://shopify/Order/12345" {
		t.Fatalf("orderGID(12345) = %q", got)
	}
	if got := orderGID("gid://shopify/Order/12345"); got != "gid://shopify/Order/12345" {
		t.Fatalf("orderGID(gid) = %q", got)
	}
}

func TestCreatePaidOrder(t *testing.T) {
	var captured map[string]interface{}
	client := testShopClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/admin/api/2025-10/graphql.json") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Fatalf("access token header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Variables map[string]interface{} `json:"variables"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		captured, _ = req.Variables["order"].(map[string]interface{})
		w.Write([]byte(`{"data":{"orderCreate":{"userErrors":[],"order":{"id":"gid://shopify/Order/42","name":"#1042"}}}}`))
	})

	order, err := client.CreatePaidOrder(context.Background(), OrderInput{
		Currency:        "PHP",
		Email:           "ana@example.com",
		LineItems:       json.RawMessage(`[{"title":"Fresh Chicken Plan","quantity":1}]`),
		Amount:          "2499.00",
		Note:            "Monthly subscription",
		Tags:            []string{"subscription", "PayMongo"},
		ShippingAddress: &ShippingAddress{Address1: "12 Mabini St", City: "Makati"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "gid://shopify/Order/42" || order.Name != "#1042" {
		t.Fatalf("unexpected order: %+v", order)
	}

	transactions, _ := captured["transactions"].([]interface{})
	if len(transactions) != 1 {
		t.Fatalf("expected one transaction, got %v", captured["transactions"])
	}
	txn := transactions[0].(map[string]interface{})
	if txn["kind"] != "SALE" || txn["status"] != "SUCCESS" {
		t.Fatalf("transaction = %v", txn)
	}
	if captured["billingAddress"] == nil || captured["shippingAddress"] == nil {
		t.Fatalf("billing address must mirror shipping address")
	}
}

func TestCreatePaidOrder_UserErrors(t *testing.T) {
	client := testShopClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"orderCreate":{"userErrors":[{"field":["order","lineItems"],"message":"must not be empty"}],"order":null}}}`))
	})

	_, err := client.CreatePaidOrder(context.Background(), OrderInput{Currency: "PHP"})
	var ue *UserErrorsError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UserErrorsError, got %T: %v", err, err)
	}
	if !strings.Contains(ue.Error(), "order.lineItems: must not be empty") {
		t.Fatalf("error string = %q", ue.Error())
	}
}

func TestSearchOrdersByEmail(t *testing.T) {
	client := testShopClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"orders":{"edges":[{"node":{
			"id":"gid://shopify/Order/7",
			"name":"#1007",
			"createdAt":"2026-08-01T10:00:00Z",
			"totalPriceSet":{"shopMoney":{"amount":"2499.0","currencyCode":"PHP"}},
			"tags":["subscription","active"],
			"note":"PayMongo PI: pi_1",
			"customAttributes":[{"key":"subscription_id","value":"sub_9"}],
			"lineItems":{"edges":[{"node":{"title":"Fresh Chicken Plan"}}]}
		}}]}}}`))
	})

	orders, err := client.SearchOrdersByEmail(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	o := orders[0]
	if o.Name != "#1007" || o.Amount != "2499.0" || o.CurrencyCode != "PHP" {
		t.Fatalf("unexpected order summary: %+v", o)
	}
	if o.CustomAttributes["subscription_id"] != "sub_9" {
		t.Fatalf("custom attributes = %v", o.CustomAttributes)
	}
	if len(o.LineItemTitles) != 1 || o.LineItemTitles[0] != "Fresh Chicken Plan" {
		t.Fatalf("line item titles = %v", o.LineItemTitles)
	}
}

func TestGraphQLTopLevelErrors(t *testing.T) {
	client := testShopClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"Throttled"}]}`))
	})

	if err := client.AddOrderTags(context.Background(), "7", "paused"); err == nil || !strings.Contains(err.Error(), "Throttled") {
		t.Fatalf("expected throttle error, got %v", err)
	}
}

func TestOrderMutations_RequireID(t *testing.T) {
	client := &Client{Shop: "example.myshopify.com", AccessToken: "x", APIVersion: "2025-10", HTTPClient: http.DefaultClient}
	if err := client.AddOrderTags(context.Background(), " ", "t"); err == nil {
		t.Fatalf("expected error for blank order id")
	}
	if err := client.UpdateOrderNote(context.Background(), "", "note"); err == nil {
		t.Fatalf("expected error for blank order id")
	}
}
