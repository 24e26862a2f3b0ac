package models

import "time"

const (
	// PaymentKeyKindPayment marks a ledger row keyed by the processor's
	// payment id (pay_...).
	PaymentKeyKindPayment = "payment"
	// PaymentKeyKindIntent marks a ledger row keyed by the payment-intent
	// id (pi_...).
	PaymentKeyKindIntent = "intent"
)

// ProcessedPayment is one row of the idempotency ledger. A successful
// fulfillment writes two rows in one transaction (payment key + intent key);
// either row existing means the payment has already produced an order and
// must not produce another one.
type ProcessedPayment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PaymentKey  string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_processed_payments_key" json:"payment_key"`
	KeyKind     string    `gorm:"type:varchar(20);not null;index" json:"key_kind"`
	OrderID     string    `gorm:"type:varchar(191);not null" json:"order_id"`
	ProcessedAt time.Time `gorm:"autoCreateTime;index" json:"processed_at"`
}
