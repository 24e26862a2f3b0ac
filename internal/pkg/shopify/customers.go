package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

const (
	// MetafieldNamespace scopes all storefront metafields written by this
	// service.
	MetafieldNamespace = "mcduffy"
	// MetafieldKeyDogProfile is the customer metafield holding the dog
	// profile JSON.
	MetafieldKeyDogProfile = "dog_profile"
)

// Customer is a Shopify customer with the dog-profile metafield, when set.
type Customer struct {
	ID             string
	Email          string
	MetafieldValue string
}

const customerByEmailQuery = `
query($query: String!) {
  customers(first: 1, query: $query) {
    edges {
      node {
        id
        email
        metafield(namespace: "mcduffy", key: "dog_profile") { value }
      }
    }
  }
}`

const customerCreateMutation = `
mutation customerCreate($input: CustomerInput!) {
  customerCreate(input: $input) {
    customer { id email }
    userErrors { field message }
  }
}`

// FindOrCreateCustomer looks a customer up by email, creating a tagged
// prospect record when none exists.
func (c *Client) FindOrCreateCustomer(ctx context.Context, email string) (*Customer, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("email is required")
	}

	var found struct {
		Customers struct {
			Edges []struct {
				Node struct {
					ID        string `json:"id"`
					Email     string `json:"email"`
					Metafield *struct {
						Value string `json:"value"`
					} `json:"metafield"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"customers"`
	}
	if err := c.graphql(ctx, customerByEmailQuery, map[string]interface{}{"query": "email:" + email}, &found); err != nil {
		return nil, err
	}
	if len(found.Customers.Edges) > 0 {
		node := found.Customers.Edges[0].Node
		customer := &Customer{ID: node.ID, Email: node.Email}
		if node.Metafield != nil {
			customer.MetafieldValue = node.Metafield.Value
		}
		return customer, nil
	}

	var created struct {
		CustomerCreate struct {
			Customer   *Customer   `json:"customer"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"customerCreate"`
	}
	err := c.graphql(ctx, customerCreateMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"email": email,
			"tags":  []string{"dog_profile", "prospect"},
		},
	}, &created)
	if err != nil {
		return nil, err
	}
	if len(created.CustomerCreate.UserErrors) > 0 {
		return nil, &UserErrorsError{Mutation: "customerCreate", Errors: created.CustomerCreate.UserErrors}
	}
	if created.CustomerCreate.Customer == nil {
		return nil, errors.New("customerCreate returned no customer")
	}
	return created.CustomerCreate.Customer, nil
}

const metafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { key namespace value }
    userErrors { field message }
  }
}`

// SetCustomerMetafield writes a JSON metafield on a customer.
func (c *Client) SetCustomerMetafield(ctx context.Context, customerID, key string, value interface{}) error {
	if strings.TrimSpace(customerID) == "" {
		return errEmptyID
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var result struct {
		MetafieldsSet struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	err = c.graphql(ctx, metafieldsSetMutation, map[string]interface{}{
		"metafields": []map[string]interface{}{{
			"ownerId":   customerID,
			"namespace": MetafieldNamespace,
			"key":       key,
			"type":      "json",
			"value":     string(encoded),
		}},
	}, &result)
	if err != nil {
		return err
	}
	if ue := result.MetafieldsSet.UserErrors; len(ue) > 0 {
		return &UserErrorsError{Mutation: "metafieldsSet", Errors: ue}
	}
	return nil
}
