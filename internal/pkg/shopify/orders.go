package shopify

import (
	"context"
	"encoding/json"
	"strings"
)

// ShippingAddress is the storefront's address shape. MailingAddressInput
// wants provinceCode/countryCode; toMailingAddress does the mapping.
type ShippingAddress struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"provinceCode"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
	CountryCode  string `json:"countryCode"`
	Phone        string `json:"phone"`
}

func (a *ShippingAddress) toMailingAddress() map[string]interface{} {
	province := a.Province
	if province == "" {
		province = a.ProvinceCode
	}
	if province == "" {
		province = "Metro Manila"
	}
	country := a.CountryCode
	if a.Country == "PH" || country == "" {
		country = "PH"
	}
	return map[string]interface{}{
		"firstName":    a.FirstName,
		"lastName":     a.LastName,
		"address1":     a.Address1,
		"address2":     a.Address2,
		"city":         a.City,
		"provinceCode": province,
		"zip":          a.Zip,
		"countryCode":  country,
		"phone":        a.Phone,
	}
}

// OrderInput is everything needed to create a fully paid order. LineItems is
// passed through as the storefront sent it (custom items with priceSet, or
// variantId entries); Amount is the total in major units as a string-safe
// decimal already formatted by the caller.
type OrderInput struct {
	Currency        string
	Email           string
	LineItems       json.RawMessage
	Amount          string
	Note            string
	Tags            []string
	ShippingAddress *ShippingAddress
}

// Order is the created order reference returned by orderCreate.
type Order struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const orderCreateMutation = `
mutation orderCreate($order: OrderCreateOrderInput!) {
  orderCreate(order: $order) {
    userErrors { field message }
    order { id name }
  }
}`

// CreatePaidOrder creates an order that is already paid: the attached
// SALE/SUCCESS transaction marks it settled. Billing address mirrors the
// shipping address. userErrors come back as *UserErrorsError.
func (c *Client) CreatePaidOrder(ctx context.Context, in OrderInput) (*Order, error) {
	var lineItems interface{}
	if len(in.LineItems) > 0 {
		if err := json.Unmarshal(in.LineItems, &lineItems); err != nil {
			return nil, err
		}
	}

	order := map[string]interface{}{
		"currency":  in.Currency,
		"email":     in.Email,
		"lineItems": lineItems,
		"transactions": []map[string]interface{}{{
			"kind":   "SALE",
			"status": "SUCCESS",
			"amountSet": map[string]interface{}{
				"shopMoney": map[string]interface{}{
					"amount":       in.Amount,
					"currencyCode": in.Currency,
				},
			},
		}},
		"note": in.Note,
		"tags": in.Tags,
	}
	if in.ShippingAddress != nil {
		addr := in.ShippingAddress.toMailingAddress()
		order["shippingAddress"] = addr
		order["billingAddress"] = addr
	}

	var result struct {
		OrderCreate struct {
			UserErrors []UserError `json:"userErrors"`
			Order      *Order      `json:"order"`
		} `json:"orderCreate"`
	}
	if err := c.graphql(ctx, orderCreateMutation, map[string]interface{}{"order": order}, &result); err != nil {
		return nil, err
	}
	if len(result.OrderCreate.UserErrors) > 0 {
		return nil, &UserErrorsError{Mutation: "orderCreate", Errors: result.OrderCreate.UserErrors}
	}
	return result.OrderCreate.Order, nil
}

// OrderSummary is the slice of an order the subscription views need.
type OrderSummary struct {
	ID               string
	Name             string
	CreatedAt        string
	Amount           string
	CurrencyCode     string
	Tags             []string
	Note             string
	CustomAttributes map[string]string
	LineItemTitles   []string
}

const ordersByEmailQuery = `
query($query: String!) {
  orders(first: 50, query: $query, sortKey: CREATED_AT, reverse: true) {
    edges {
      node {
        id
        name
        createdAt
        totalPriceSet { shopMoney { amount currencyCode } }
        tags
        note
        customAttributes { key value }
        lineItems(first: 5) { edges { node { title quantity } } }
      }
    }
  }
}`

// SearchOrdersByEmail returns the newest 50 orders for an email address.
func (c *Client) SearchOrdersByEmail(ctx context.Context, email string) ([]OrderSummary, error) {
	var result struct {
		Orders struct {
			Edges []struct {
				Node struct {
					ID            string `json:"id"`
					Name          string `json:"name"`
					CreatedAt     string `json:"createdAt"`
					TotalPriceSet struct {
						ShopMoney struct {
							Amount       string `json:"amount"`
							CurrencyCode string `json:"currencyCode"`
						} `json:"shopMoney"`
					} `json:"totalPriceSet"`
					Tags             []string `json:"tags"`
					Note             string   `json:"note"`
					CustomAttributes []struct {
						Key   string `json:"key"`
						Value string `json:"value"`
					} `json:"customAttributes"`
					LineItems struct {
						Edges []struct {
							Node struct {
								Title string `json:"title"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"lineItems"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"orders"`
	}

	err := c.graphql(ctx, ordersByEmailQuery, map[string]interface{}{"query": "email:" + email}, &result)
	if err != nil {
		return nil, err
	}

	orders := make([]OrderSummary, 0, len(result.Orders.Edges))
	for _, edge := range result.Orders.Edges {
		n := edge.Node
		summary := OrderSummary{
			ID:               n.ID,
			Name:             n.Name,
			CreatedAt:        n.CreatedAt,
			Amount:           n.TotalPriceSet.ShopMoney.Amount,
			CurrencyCode:     n.TotalPriceSet.ShopMoney.CurrencyCode,
			Tags:             n.Tags,
			Note:             n.Note,
			CustomAttributes: make(map[string]string, len(n.CustomAttributes)),
		}
		for _, attr := range n.CustomAttributes {
			summary.CustomAttributes[attr.Key] = attr.Value
		}
		for _, item := range n.LineItems.Edges {
			summary.LineItemTitles = append(summary.LineItemTitles, item.Node.Title)
		}
		orders = append(orders, summary)
	}
	return orders, nil
}

const tagsAddMutation = `
mutation tagsAdd($id: ID!, $tags: [String!]!) {
  tagsAdd(id: $id, tags: $tags) {
    node { ... on Order { id tags } }
    userErrors { field message }
  }
}`

const tagsRemoveMutation = `
mutation tagsRemove($id: ID!, $tags: [String!]!) {
  tagsRemove(id: $id, tags: $tags) {
    node { ... on Order { id tags } }
    userErrors { field message }
  }
}`

// AddOrderTags appends tags to an order.
func (c *Client) AddOrderTags(ctx context.Context, orderID string, tags ...string) error {
	return c.mutateOrderTags(ctx, "tagsAdd", tagsAddMutation, orderID, tags)
}

// RemoveOrderTags removes tags from an order. Missing tags are not an error.
func (c *Client) RemoveOrderTags(ctx context.Context, orderID string, tags ...string) error {
	return c.mutateOrderTags(ctx, "tagsRemove", tagsRemoveMutation, orderID, tags)
}

func (c *Client) mutateOrderTags(ctx context.Context, name, mutation, orderID string, tags []string) error {
	if strings.TrimSpace(orderID) == "" {
		return errEmptyID
	}
	var result map[string]struct {
		UserErrors []UserError `json:"userErrors"`
	}
	if err := c.graphql(ctx, mutation, map[string]interface{}{
		"id":   orderGID(orderID),
		"tags": tags,
	}, &result); err != nil {
		return err
	}
	if ue := result[name].UserErrors; len(ue) > 0 {
		return &UserErrorsError{Mutation: name, Errors: ue}
	}
	return nil
}

const orderUpdateNoteMutation = `
mutation orderUpdate($input: OrderInput!) {
  orderUpdate(input: $input) {
    order { id note }
    userErrors { field message }
  }
}`

// UpdateOrderNote replaces an order's note.
func (c *Client) UpdateOrderNote(ctx context.Context, orderID, note string) error {
	if strings.TrimSpace(orderID) == "" {
		return errEmptyID
	}
	var result struct {
		OrderUpdate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"orderUpdate"`
	}
	if err := c.graphql(ctx, orderUpdateNoteMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"id":   orderGID(orderID),
			"note": note,
		},
	}, &result); err != nil {
		return err
	}
	if ue := result.OrderUpdate.UserErrors; len(ue) > 0 {
		return &UserErrorsError{Mutation: "orderUpdate", Errors: ue}
	}
	return nil
}
