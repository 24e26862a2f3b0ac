package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/mcduffy-co/mcduffy-backend/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBlueprintNotFound reports that no order blueprint was staged for a
// payment intent. For a paid event this is terminal: redelivery cannot heal
// it, only manual reconciliation can.
var ErrBlueprintNotFound = errors.New("order blueprint not found")

// ErrNoKeys reports that neither a payment id nor a payment-intent id was
// supplied to a ledger operation.
var ErrNoKeys = errors.New("at least one of payment id or payment intent id is required")

// Store is the durable state the reconciler reads and writes: the
// idempotency ledger, the blueprint store and the delivery journal. The two
// KV partitions share one database but nothing else writes them.
type Store interface {
	// IsProcessed reports whether either non-empty key already produced an
	// order. Calling it with both keys empty is a caller error.
	IsProcessed(ctx context.Context, paymentID, paymentIntentID string) (bool, error)
	// MarkProcessed records both supplied keys in one transaction. It is
	// idempotent: re-marking existing keys neither errors nor duplicates.
	MarkProcessed(ctx context.Context, paymentID, paymentIntentID, orderID string) error

	// SaveBlueprint stages an order blueprint keyed by its payment intent.
	SaveBlueprint(ctx context.Context, bp *models.OrderBlueprint) error
	// GetBlueprint loads a staged blueprint or ErrBlueprintNotFound.
	GetBlueprint(ctx context.Context, paymentIntentID string) (*models.OrderBlueprint, error)

	// RecordDelivery journals an inbound delivery for audit.
	RecordDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	// FinishDelivery stamps a journaled delivery with its outcome.
	FinishDelivery(ctx context.Context, id uint, outcome string, processingErr error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates the GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) IsProcessed(ctx context.Context, paymentID, paymentIntentID string) (bool, error) {
	keys := ledgerKeys(paymentID, paymentIntentID)
	if len(keys) == 0 {
		return false, ErrNoKeys
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ProcessedPayment{}).
		Where("payment_key IN ?", keys).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormStore) MarkProcessed(ctx context.Context, paymentID, paymentIntentID, orderID string) error {
	rows := make([]models.ProcessedPayment, 0, 2)
	if paymentID != "" {
		rows = append(rows, models.ProcessedPayment{
			PaymentKey: paymentID,
			KeyKind:    models.PaymentKeyKindPayment,
			OrderID:    orderID,
		})
	}
	if paymentIntentID != "" {
		rows = append(rows, models.ProcessedPayment{
			PaymentKey: paymentIntentID,
			KeyKind:    models.PaymentKeyKindIntent,
			OrderID:    orderID,
		})
	}
	if len(rows) == 0 {
		return ErrNoKeys
	}

	// Both keys commit or neither does. OnConflict keeps a re-mark of the
	// same payment from erroring on the unique key.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_key"}},
			DoNothing: true,
		}).Create(&rows).Error
	})
}

func (s *gormStore) SaveBlueprint(ctx context.Context, bp *models.OrderBlueprint) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_intent_id"}},
		DoNothing: true,
	}).Create(bp).Error
}

func (s *gormStore) GetBlueprint(ctx context.Context, paymentIntentID string) (*models.OrderBlueprint, error) {
	if paymentIntentID == "" {
		return nil, ErrBlueprintNotFound
	}
	var bp models.OrderBlueprint
	err := s.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).First(&bp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBlueprintNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bp, nil
}

func (s *gormStore) RecordDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	return s.db.WithContext(ctx).Create(delivery).Error
}

func (s *gormStore) FinishDelivery(ctx context.Context, id uint, outcome string, processingErr error) error {
	if id == 0 {
		return nil
	}
	now := time.Now()
	updates := map[string]interface{}{
		"outcome":      outcome,
		"processed_at": &now,
	}
	if processingErr != nil {
		updates["processing_error"] = processingErr.Error()
	}
	return s.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func ledgerKeys(paymentID, paymentIntentID string) []string {
	keys := make([]string, 0, 2)
	if paymentID != "" {
		keys = append(keys, paymentID)
	}
	if paymentIntentID != "" {
		keys = append(keys, paymentIntentID)
	}
	return keys
}
