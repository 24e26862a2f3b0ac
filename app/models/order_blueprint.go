package models

import "time"

// OrderBlueprint is the order payload staged at subscribe time, keyed by the
// payment intent the processor will reference in its webhook. Write-once; no
// update or delete path. Blueprints survive reconciliation for audit.
type OrderBlueprint struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	PaymentIntentID string `gorm:"type:varchar(191);not null;uniqueIndex:ux_order_blueprints_intent" json:"payment_intent_id"`
	SubscriptionID  string `gorm:"type:varchar(191);not null;default:'';index" json:"subscription_id"`
	PlanID          string `gorm:"type:varchar(191);not null;default:''" json:"plan_id"`
	CustomerID      string `gorm:"type:varchar(191);not null;default:''" json:"customer_id"`

	Currency    string `gorm:"type:varchar(10);not null;default:'PHP'" json:"currency"`
	Email       string `gorm:"type:varchar(200);not null;index" json:"email"`
	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Note        string `gorm:"type:text" json:"note"`

	// Shopify-shaped collections stored as JSON so the blueprint round-trips
	// without a schema change when the storefront adds fields.
	LineItemsJSON       string `gorm:"type:longtext;not null" json:"line_items_json"`
	TagsJSON            string `gorm:"type:text;not null;default:''" json:"tags_json"`
	ShippingAddressJSON string `gorm:"type:text;not null;default:''" json:"shipping_address_json"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
