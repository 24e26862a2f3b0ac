package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/env"
)

const defaultAPIVersion = "2025-10"

// Client talks to the Shopify Admin GraphQL API for one shop.
type Client struct {
	Shop        string
	AccessToken string
	APIVersion  string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from SHOPIFY_SHOP and
// SHOPIFY_ADMIN_ACCESS_TOKEN. Both are required; the error names what is
// missing so a misconfigured deploy fails at startup, not mid-order.
func NewClientFromEnv() (*Client, error) {
	shop, err := env.RequireEnv("SHOPIFY_SHOP")
	if err != nil {
		return nil, err
	}
	token, err := env.RequireEnv("SHOPIFY_ADMIN_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	return &Client{
		Shop:        shop,
		AccessToken: token,
		APIVersion:  env.GetEnv("SHOPIFY_API_VERSION", defaultAPIVersion),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// UserErrorsError carries Shopify mutation userErrors. These are structural
// complaints about the input (bad address, bad line item) and are never
// retried.
type UserErrorsError struct {
	Mutation string
	Errors   []UserError
}

// UserError is one entry of a mutation's userErrors array.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func (e *UserErrorsError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		if len(ue.Field) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
		} else {
			parts = append(parts, ue.Message)
		}
	}
	return fmt.Sprintf("shopify %s userErrors: %s", e.Mutation, strings.Join(parts, "; "))
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// graphql runs one query/mutation and unmarshals the data field into out.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.Shop, c.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("shopify graphql request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var decoded graphqlResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("invalid JSON from Shopify: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return fmt.Errorf("shopify graphql error: %s", decoded.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(decoded.Data, out); err != nil {
			return fmt.Errorf("unexpected Shopify response shape: %w", err)
		}
	}
	return nil
}

// orderGID widens a bare numeric order id into its global id form.
func orderGID(id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Order/" + id
}

var errEmptyID = errors.New("id is required")
