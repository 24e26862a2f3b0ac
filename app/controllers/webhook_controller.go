package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/archive"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/reconcile"
)

// WebhookController receives PayMongo event deliveries. All business
// decisions live in the reconciler; this layer only moves bytes and maps
// outcomes onto HTTP statuses.
type WebhookController struct {
	reconciler *reconcile.Reconciler
	archiver   *archive.Archiver
}

// NewWebhookController wires the webhook endpoint. archiver may be nil.
func NewWebhookController(reconciler *reconcile.Reconciler, archiver *archive.Archiver) *WebhookController {
	return &WebhookController{reconciler: reconciler, archiver: archiver}
}

// HandlePayMongoWebhook processes POST /api/paymongo/webhook. The body is
// passed to the reconciler as raw bytes: signature verification must see
// exactly what the processor signed, so no parsing happens here.
func (wc *WebhookController) HandlePayMongoWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Paymongo-Signature")

	outcome := wc.reconciler.Process(c.UserContext(), rawBody, signature)

	switch outcome {
	case reconcile.OutcomeBadPayload:
		return c.Status(fiber.StatusBadRequest).SendString("invalid json")
	case reconcile.OutcomeBadSignature:
		return c.Status(fiber.StatusBadRequest).SendString("invalid signature")
	}

	// Signed payloads are archived regardless of how processing went; the
	// audit trail is most valuable exactly when processing misbehaved.
	wc.archiver.Archive(uuid.NewString(), rawBody)

	// Every handled, duplicate or unfulfillable delivery is acknowledged so
	// the sender stops retrying; failures are fixed forward manually.
	return c.Status(fiber.StatusOK).SendString("ok")
}
