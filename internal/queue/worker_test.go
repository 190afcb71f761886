package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/the-bazaar/bazaar-backend/internal/aws"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendEmail(ctx context.Context, email aws.Email) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) ProcessWebhook(ctx context.Context, event string, data json.RawMessage) error {
	args := m.Called(ctx, event, data)
	return args.Error(0)
}

func task(t *testing.T, taskType string, payload any) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(taskType, b)
}

func TestHandleEmailDelivery(t *testing.T) {
	mailer := &mockMailer{}
	w := &Worker{mailer: mailer}

	mailer.On("SendEmail", mock.Anything, aws.Email{To: "ada@bazaar.test", Subject: "Welcome", Text: "hi"}).
		Return("msg-1", nil).Once()

	err := w.HandleEmailDelivery(context.Background(), task(t, TypeEmailDelivery, EmailDeliveryPayload{
		To: "ada@bazaar.test", Subject: "Welcome", Text: "hi",
	}))
	require.NoError(t, err)
	mailer.AssertExpectations(t)
}

func TestHandleEmailDeliveryRetriesSendFailure(t *testing.T) {
	mailer := &mockMailer{}
	mailer.On("SendEmail", mock.Anything, mock.Anything).Return("", errors.New("throttled"))

	err := (&Worker{mailer: mailer}).HandleEmailDelivery(context.Background(), task(t, TypeEmailDelivery, EmailDeliveryPayload{To: "x@bazaar.test"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEmailDeliverySkipsBadPayload(t *testing.T) {
	w := &Worker{mailer: &mockMailer{}}

	err := w.HandleEmailDelivery(context.Background(), asynq.NewTask(TypeEmailDelivery, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.HandleEmailDelivery(context.Background(), task(t, TypeEmailDelivery, EmailDeliveryPayload{Subject: "no one"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePaymentWebhook(t *testing.T) {
	payments := &mockPayments{}
	w := &Worker{payments: payments}

	data := json.RawMessage(`{"reference":"ref-1"}`)
	payments.On("ProcessWebhook", mock.Anything, "charge.success", data).Return(nil).Once()

	err := w.HandlePaymentWebhook(context.Background(), task(t, TypePaymentWebhook, PaymentWebhookPayload{Event: "charge.success", Data: data}))
	require.NoError(t, err)
	payments.AssertExpectations(t)
}

func TestHandlePaymentWebhookPropagatesFailure(t *testing.T) {
	payments := &mockPayments{}
	payments.On("ProcessWebhook", mock.Anything, "refund.processed", mock.Anything).Return(errors.New("db down"))

	err := (&Worker{payments: payments}).HandlePaymentWebhook(context.Background(),
		task(t, TypePaymentWebhook, PaymentWebhookPayload{Event: "refund.processed", Data: json.RawMessage(`{}`)}))
	assert.ErrorContains(t, err, "db down")
}
