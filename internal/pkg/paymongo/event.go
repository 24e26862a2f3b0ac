package paymongo

import (
	"encoding/json"
	"strings"
)

const (
	EventPaymentPaid   = "payment.paid"
	EventPaymentFailed = "payment.failed"
)

// WebhookEvent is one inbound delivery, parsed just far enough for the
// reconciler: type, livemode and the payment/intent identifiers. Raw keeps
// the exact bytes for journaling.
type WebhookEvent struct {
	Type            string
	Livemode        bool
	PaymentID       string
	PaymentIntentID string
	Raw             []byte
}

// paymentIntentEventPaths lists, in order, the nestings under which PayMongo
// has been observed to place the payment-intent id inside a payment
// resource. API versions disagree; the first non-empty match wins.
var paymentIntentEventPaths = []string{
	"attributes.payment_intent_id",
	"attributes.payment_intent.id",
	"attributes.payment_intentId",
}

// ParseWebhookEvent decodes an event envelope
// {data:{attributes:{type, livemode, data:{id, attributes:{...}}}}}.
// It returns an error only for malformed JSON; missing fields yield empty
// strings so the reconciler can decide how to react.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	ev := &WebhookEvent{Raw: raw}
	ev.Type = lookupString(envelope, "data.attributes.type")
	if v, ok := lookup(envelope, "data.attributes.livemode"); ok {
		b, _ := v.(bool)
		ev.Livemode = b
	}

	if payment, ok := lookup(envelope, "data.attributes.data"); ok {
		if m, ok := payment.(map[string]interface{}); ok {
			ev.PaymentID = lookupString(m, "id")
			ev.PaymentIntentID = firstNonEmpty(m, paymentIntentEventPaths)
		}
	}
	return ev, nil
}

// firstNonEmpty walks the given dot paths in order and returns the first
// non-empty string value, or "" when none match.
func firstNonEmpty(m map[string]interface{}, paths []string) string {
	for _, p := range paths {
		if s := lookupString(m, p); s != "" {
			return s
		}
	}
	return ""
}

func lookupString(m map[string]interface{}, path string) string {
	v, ok := lookup(m, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func lookup(m map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = m
	for _, key := range strings.Split(path, ".") {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
