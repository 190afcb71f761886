package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/orders"
	"github.com/the-bazaar/bazaar-backend/internal/queue"
)

const maxWebhookBody = 1 << 20

// PaystackWebhook authenticates the gateway by signature and hands the event
// to the worker. Past the signature check it answers 200 no matter what, so
// the gateway never retries into an outage.
func (s *Server) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn("failed to read webhook body", "error", err)
		acknowledge(w)
		return
	}

	if !orders.VerifySignature(s.paystackSecret, body, r.Header.Get(orders.SignatureHeader)) {
		metrics.WebhookEvent("unknown", "bad_signature")
		log.Warn("rejected webhook with invalid signature")
		NewError(http.StatusUnauthorized, CodeInvalidSignature, "Invalid signature").Write(w)
		return
	}

	var event orders.Event
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhookEvent("unknown", "malformed")
		log.Warn("discarding malformed webhook", "error", err)
		acknowledge(w)
		return
	}

	_, err = s.queue.Enqueue(r.Context(), queue.TypePaymentWebhook,
		queue.PaymentWebhookPayload{Event: event.Event, Data: event.Data},
		asynq.Queue(queue.QueueCritical),
	)
	if err != nil {
		metrics.WebhookEvent(event.Event, "enqueue_failed")
		log.Error("failed to enqueue webhook", "event", event.Event, "error", err)
		acknowledge(w)
		return
	}

	metrics.WebhookEvent(event.Event, "accepted")
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
