package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.paymongo.com/v1"

// Client is a minimal typed wrapper over the PayMongo REST API, covering the
// plan/customer/subscription/payment-intent operations the bridge needs.
type Client struct {
	SecretKey string
	BaseURL   string

	HTTPClient *http.Client
}

// ErrorDetail is one entry of PayMongo's errors[] array.
type ErrorDetail struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Source struct {
		Pointer   string `json:"pointer"`
		Attribute string `json:"attribute"`
	} `json:"source"`
}

// APIError is a non-2xx PayMongo response with its decoded errors array.
type APIError struct {
	Status int
	Errors []ErrorDetail
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("paymongo_%d: %s", e.Status, e.Errors[0].Detail)
	}
	return fmt.Sprintf("paymongo_%d", e.Status)
}

// NewClientFromEnv builds a client from PAYMONGO_SECRET_KEY. The key is only
// validated on first use so read paths can still construct the client.
func NewClientFromEnv() *Client {
	return &Client{
		SecretKey: strings.TrimSpace(env.GetEnv("PAYMONGO_SECRET_KEY", "")),
		BaseURL:   strings.TrimRight(env.GetEnv("PAYMONGO_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	if c.SecretKey == "" {
		return nil, errors.New("PAYMONGO_SECRET_KEY is not set")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.SecretKey+":")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var decoded map[string]interface{}
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Errors []ErrorDetail `json:"errors"`
		}
		if err := json.Unmarshal(raw, &errBody); err == nil && len(errBody.Errors) > 0 {
			apiErr.Errors = errBody.Errors
		} else {
			apiErr.Errors = []ErrorDetail{{Code: "http_error", Detail: strings.TrimSpace(string(raw))}}
		}
		return decoded, apiErr
	}
	if decoded == nil {
		return nil, fmt.Errorf("paymongo returned unparseable body for %s %s", method, path)
	}
	return decoded, nil
}

// NormalizeInterval maps storefront interval names to the values PayMongo
// accepts ('month', not 'monthly').
func NormalizeInterval(interval string) string {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "monthly", "month", "":
		return "month"
	case "weekly", "week":
		return "week"
	case "daily", "day":
		return "day"
	case "yearly", "year":
		return "year"
	default:
		return strings.ToLower(strings.TrimSpace(interval))
	}
}

// PlanInput describes a recurring plan. Amount is in centavos.
type PlanInput struct {
	Name          string
	Description   string
	Amount        int64
	Currency      string
	Interval      string
	IntervalCount int
}

// CreatePlan creates a plan and returns its id.
func (c *Client) CreatePlan(ctx context.Context, in PlanInput) (string, error) {
	if in.Currency == "" {
		in.Currency = "PHP"
	}
	if in.IntervalCount <= 0 {
		in.IntervalCount = 1
	}
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"attributes": map[string]interface{}{
				"name":           in.Name,
				"description":    in.Description,
				"amount":         in.Amount,
				"currency":       in.Currency,
				"interval":       NormalizeInterval(in.Interval),
				"interval_count": in.IntervalCount,
			},
		},
	}
	resp, err := c.call(ctx, http.MethodPost, "/plans", body)
	if err != nil {
		return "", err
	}
	id := lookupString(resp, "data.id")
	if id == "" {
		return "", errors.New("paymongo plan response missing id")
	}
	return id, nil
}

// CustomerInput describes a processor-side customer. Only the attributes
// PayMongo accepts are sent.
type CustomerInput struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// CreateCustomer creates a customer and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	attrs := map[string]interface{}{
		"email":      in.Email,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
	}
	if in.Phone != "" {
		attrs["phone"] = in.Phone
	}
	resp, err := c.call(ctx, http.MethodPost, "/customers", map[string]interface{}{
		"data": map[string]interface{}{"attributes": attrs},
	})
	if err != nil {
		return "", err
	}
	id := lookupString(resp, "data.id")
	if id == "" {
		return "", errors.New("paymongo customer response missing id")
	}
	return id, nil
}

// subscriptionIntentPaths and subscriptionClientKeyPaths list the nestings
// under which PayMongo subscription responses have been observed to carry
// the latest invoice's payment intent. First non-empty match wins.
var subscriptionIntentPaths = []string{
	"attributes.latest_invoice.payment_intent.id",
	"attributes.latest_invoice.payment_intent_id",
	"data.attributes.latest_invoice.data.attributes.payment_intent.id",
	"data.attributes.latest_invoice.data.attributes.payment_intent_id",
}

var subscriptionClientKeyPaths = []string{
	"attributes.latest_invoice.payment_intent.attributes.client_key",
	"data.attributes.latest_invoice.data.attributes.payment_intent.attributes.client_key",
}

// Subscription is the result of CreateSubscription. PaymentIntentID and
// ClientKey may be empty when the response nesting carried neither; callers
// fall back to GetPaymentIntent.
type Subscription struct {
	ID              string
	PaymentIntentID string
	ClientKey       string
}

// CreateSubscription subscribes a customer to a plan and extracts the first
// invoice's payment intent from whichever response shape came back.
func (c *Client) CreateSubscription(ctx context.Context, customerID, planID string) (*Subscription, error) {
	resp, err := c.call(ctx, http.MethodPost, "/subscriptions", map[string]interface{}{
		"data": map[string]interface{}{
			"attributes": map[string]interface{}{
				"customer": customerID,
				"plan":     planID,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	sub := &Subscription{ID: lookupString(resp, "data.id")}
	if sub.ID == "" {
		return nil, errors.New("paymongo subscription response missing id")
	}
	sub.PaymentIntentID = firstNonEmpty(resp, subscriptionIntentPaths)
	sub.ClientKey = firstNonEmpty(resp, subscriptionClientKeyPaths)
	return sub, nil
}

// PaymentIntent is a processor-side collection attempt.
type PaymentIntent struct {
	ID        string
	Status    string
	ClientKey string
}

// GetPaymentIntent fetches a payment intent by id.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("payment intent id is required")
	}
	resp, err := c.call(ctx, http.MethodGet, "/payment_intents/"+id, nil)
	if err != nil {
		return nil, err
	}
	pi := &PaymentIntent{
		ID:        lookupString(resp, "data.id"),
		Status:    lookupString(resp, "data.attributes.status"),
		ClientKey: lookupString(resp, "data.attributes.client_key"),
	}
	if pi.ID == "" {
		pi.ID = id
	}
	return pi, nil
}

// CancelSubscription stops future charges for a subscription. reason must be
// one of PayMongo's accepted values; anything else is sent as "other".
func (c *Client) CancelSubscription(ctx context.Context, id, reason string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("subscription id is required")
	}
	switch reason {
	case "too_expensive", "missing_features", "switched_service", "unused", "other":
	default:
		reason = "other"
	}
	_, err := c.call(ctx, http.MethodPost, "/subscriptions/"+id+"/cancel", map[string]interface{}{
		"data": map[string]interface{}{
			"attributes": map[string]interface{}{
				"cancellation_reason": reason,
			},
		},
	})
	return err
}
