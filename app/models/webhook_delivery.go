package models

import "time"

// WebhookDelivery journals every inbound processor delivery with its
// signature verdict and processing result. The idempotency ledger, not this
// table, decides whether fulfillment runs; the journal exists for audit and
// manual reconciliation.
type WebhookDelivery struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	DeliveryID      string     `gorm:"type:varchar(191);not null;index" json:"delivery_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Livemode        bool       `gorm:"default:false" json:"livemode"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Outcome         string     `gorm:"type:varchar(40);not null;default:''" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
