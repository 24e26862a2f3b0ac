package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/mcduffy-co/mcduffy-backend/app/models"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/paymongo"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/shopify"
)

// Outcome classifies how one webhook delivery ended. Only BadPayload and
// BadSignature translate to a non-2xx response; every other outcome is
// acknowledged so the sender stops retrying.
type Outcome string

const (
	OutcomeBadPayload   Outcome = "bad_payload"
	OutcomeBadSignature Outcome = "bad_signature"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeNoBlueprint  Outcome = "no_blueprint"
	OutcomeFulfilled    Outcome = "fulfilled"
	OutcomeFailed       Outcome = "failed"
)

// Acknowledged reports whether the delivery should be answered with 200.
func (o Outcome) Acknowledged() bool {
	return o != OutcomeBadPayload && o != OutcomeBadSignature
}

// OrderGateway creates a paid order from a blueprint. *shopify.Client
// satisfies it; tests substitute fakes.
type OrderGateway interface {
	CreatePaidOrder(ctx context.Context, in shopify.OrderInput) (*shopify.Order, error)
}

// Reconciler drives one webhook delivery from raw bytes to an acknowledged
// outcome: verify, dedupe, resolve the blueprint, fulfill, mark processed.
// It holds no state across deliveries beyond what the Store persists, and it
// is the error boundary for the whole inbound path.
type Reconciler struct {
	store         Store
	gateway       OrderGateway
	webhookSecret string

	// fulfillTimeout bounds the order-creation call so a stuck downstream
	// cannot hold the webhook response past the sender's own timeout.
	fulfillTimeout time.Duration

	locks *keyedMutex
}

// New builds a reconciler. webhookSecret signs both live and test events;
// the event's own livemode flag selects which header component to check.
func New(store Store, gateway OrderGateway, webhookSecret string) *Reconciler {
	return &Reconciler{
		store:          store,
		gateway:        gateway,
		webhookSecret:  webhookSecret,
		fulfillTimeout: 25 * time.Second,
		locks:          newKeyedMutex(),
	}
}

// Process handles one delivery. rawBody must be the exact bytes received —
// signature verification happens before any re-serialization could occur.
func (r *Reconciler) Process(ctx context.Context, rawBody []byte, signatureHeader string) Outcome {
	event, err := paymongo.ParseWebhookEvent(rawBody)
	if err != nil {
		// No valid event could have produced unparseable JSON; reject so
		// the sender surfaces the delivery problem on its side.
		return OutcomeBadPayload
	}

	if !paymongo.VerifyWebhookSignature(signatureHeader, rawBody, r.webhookSecret, event.Livemode) {
		return OutcomeBadSignature
	}

	deliveryID := r.journalDelivery(ctx, event)

	if event.Type != paymongo.EventPaymentPaid {
		// payment.failed and unknown types are terminal no-ops here; any
		// business reaction to failures lives outside this service.
		r.finishDelivery(ctx, deliveryID, OutcomeIgnored, nil)
		return OutcomeIgnored
	}

	order, outcome, procErr := r.FulfillPayment(ctx, event.PaymentID, event.PaymentIntentID,
		fmt.Sprintf("PayMongo payment: %s", event.PaymentID), nil)
	if outcome == OutcomeFulfilled {
		log.Infof("[Reconcile] Created order %s (%s) for intent %s", order.ID, order.Name, event.PaymentIntentID)
	}
	r.finishDelivery(ctx, deliveryID, outcome, procErr)
	return outcome
}

// FulfillPayment runs the dedupe-then-fulfill critical section shared by the
// webhook path and the storefront's post-3DS fallback. At most one caller per
// key is inside at a time, so two concurrent deliveries of the same payment
// cannot both reach the order gateway.
func (r *Reconciler) FulfillPayment(ctx context.Context, paymentID, paymentIntentID, noteRef string, extraTags []string) (*shopify.Order, Outcome, error) {
	lockKey := paymentIntentID
	if lockKey == "" {
		lockKey = paymentID
	}
	if lockKey == "" {
		// A paid event with no identifiers at all cannot be matched to a
		// blueprint; acknowledge and leave it to manual reconciliation.
		log.Errorf("[Reconcile] payment.paid event carried no payment or intent id")
		return nil, OutcomeNoBlueprint, nil
	}
	unlock := r.locks.Lock(lockKey)
	defer unlock()

	processed, err := r.store.IsProcessed(ctx, paymentID, paymentIntentID)
	if err != nil {
		log.Errorf("[Reconcile] ledger check failed for %s: %v", lockKey, err)
		return nil, OutcomeFailed, err
	}
	if processed {
		return nil, OutcomeDuplicate, nil
	}

	bp, err := r.store.GetBlueprint(ctx, paymentIntentID)
	if err == ErrBlueprintNotFound {
		log.Errorf("[Reconcile] ALERT: no blueprint for intent %q (payment %q); manual reconciliation required", paymentIntentID, paymentID)
		return nil, OutcomeNoBlueprint, nil
	}
	if err != nil {
		log.Errorf("[Reconcile] blueprint load failed for %s: %v", paymentIntentID, err)
		return nil, OutcomeFailed, err
	}

	input, err := BlueprintOrderInput(bp, noteRef, extraTags)
	if err != nil {
		log.Errorf("[Reconcile] blueprint %s is malformed: %v", paymentIntentID, err)
		return nil, OutcomeFailed, err
	}

	fulfillCtx, cancel := context.WithTimeout(ctx, r.fulfillTimeout)
	defer cancel()

	order, err := r.gateway.CreatePaidOrder(fulfillCtx, input)
	if err != nil {
		// Acknowledge anyway: retrying a non-idempotent remote create risks
		// duplicate orders, so this is fixed forward manually.
		log.Errorf("[Reconcile] order creation failed for intent %s: %v", paymentIntentID, err)
		return nil, OutcomeFailed, err
	}

	if err := r.store.MarkProcessed(ctx, paymentID, paymentIntentID, order.ID); err != nil {
		log.Errorf("[Reconcile] ALERT: order %s created but ledger mark failed for intent %s: %v", order.ID, paymentIntentID, err)
		return order, OutcomeFailed, err
	}
	return order, OutcomeFulfilled, nil
}

// BlueprintOrderInput converts a staged blueprint into the gateway's order
// input, appending the traceability reference to the note and the PayMongo
// tag to the tag list.
func BlueprintOrderInput(bp *models.OrderBlueprint, noteRef string, extraTags []string) (shopify.OrderInput, error) {
	var tags []string
	if bp.TagsJSON != "" {
		if err := json.Unmarshal([]byte(bp.TagsJSON), &tags); err != nil {
			return shopify.OrderInput{}, fmt.Errorf("tags: %w", err)
		}
	}
	tags = append(tags, "PayMongo")
	tags = append(tags, extraTags...)

	var addr *shopify.ShippingAddress
	if bp.ShippingAddressJSON != "" {
		addr = &shopify.ShippingAddress{}
		if err := json.Unmarshal([]byte(bp.ShippingAddressJSON), addr); err != nil {
			return shopify.OrderInput{}, fmt.Errorf("shipping address: %w", err)
		}
	}

	note := bp.Note
	if noteRef != "" {
		note += " | " + noteRef
	}

	return shopify.OrderInput{
		Currency:        bp.Currency,
		Email:           bp.Email,
		LineItems:       json.RawMessage(bp.LineItemsJSON),
		Amount:          FormatCentavos(bp.AmountCents),
		Note:            note,
		Tags:            tags,
		ShippingAddress: addr,
	}, nil
}

// FormatCentavos renders a centavo amount as the decimal string Shopify's
// money inputs expect.
func FormatCentavos(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (r *Reconciler) journalDelivery(ctx context.Context, event *paymongo.WebhookEvent) uint {
	delivery := &models.WebhookDelivery{
		Provider:       "paymongo",
		DeliveryID:     uuid.NewString(),
		EventType:      event.Type,
		Livemode:       event.Livemode,
		PayloadJSON:    string(event.Raw),
		SignatureValid: true,
	}
	if err := r.store.RecordDelivery(ctx, delivery); err != nil {
		// The journal is audit-only; its failure must not block processing.
		log.Warnf("[Reconcile] failed to journal delivery: %v", err)
		return 0
	}
	return delivery.ID
}

func (r *Reconciler) finishDelivery(ctx context.Context, id uint, outcome Outcome, procErr error) {
	if id == 0 {
		return
	}
	if err := r.store.FinishDelivery(ctx, id, string(outcome), procErr); err != nil {
		log.Warnf("[Reconcile] failed to finish journaled delivery %d: %v", id, err)
	}
}
