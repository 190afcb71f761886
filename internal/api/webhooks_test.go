package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/the-bazaar/bazaar-backend/internal/orders"
	"github.com/the-bazaar/bazaar-backend/internal/queue"
	"github.com/the-bazaar/bazaar-backend/internal/testutil"
)

const chargeSuccess = `{"event":"charge.success","data":{"reference":"ref-123","amount":150000,"status":"success"}}`

func webhookRequest(body, signature string) testutil.Request {
	return testutil.Request{
		Method:  http.MethodPost,
		Path:    "/api/webhooks/paystack",
		RawBody: []byte(body),
		Headers: map[string]string{orders.SignatureHeader: signature},
	}
}

func TestPaystackWebhook(t *testing.T) {
	t.Run("bad signature is rejected", func(t *testing.T) {
		h := newHarness(t)

		resp := h.do(webhookRequest(chargeSuccess, orders.Sign("wrong-secret", []byte(chargeSuccess))))

		require.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, CodeInvalidSignature, resp.ErrorCode())
		h.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		h := newHarness(t)

		resp := h.do(webhookRequest(chargeSuccess, ""))

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("valid event is queued", func(t *testing.T) {
		h := newHarness(t)
		h.queue.On("Enqueue", mock.Anything, queue.TypePaymentWebhook, mock.MatchedBy(func(p queue.PaymentWebhookPayload) bool {
			return p.Event == "charge.success" && string(p.Data) == `{"reference":"ref-123","amount":150000,"status":"success"}`
		})).Return(&asynq.TaskInfo{ID: "task-1"}, nil)

		resp := h.do(webhookRequest(chargeSuccess, orders.Sign(testPaystackSecret, []byte(chargeSuccess))))

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "ok", resp.Body["status"])
	})

	t.Run("queue outage is still acknowledged", func(t *testing.T) {
		h := newHarness(t)
		h.queue.On("Enqueue", mock.Anything, queue.TypePaymentWebhook, mock.Anything).Return(nil, errors.New("redis: connection refused"))

		resp := h.do(webhookRequest(chargeSuccess, orders.Sign(testPaystackSecret, []byte(chargeSuccess))))

		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("signed garbage is acknowledged and dropped", func(t *testing.T) {
		h := newHarness(t)
		body := `not json`

		resp := h.do(webhookRequest(body, orders.Sign(testPaystackSecret, []byte(body))))

		assert.Equal(t, http.StatusOK, resp.Code)
		h.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
	})
}
