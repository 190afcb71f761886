package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/the-bazaar/bazaar-backend/internal/aws"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
)

type Mailer interface {
	SendEmail(ctx context.Context, email aws.Email) (string, error)
}

// WebhookProcessor applies a verified payment event.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, event string, data json.RawMessage) error
}

type Worker struct {
	server   *asynq.Server
	mailer   Mailer
	payments WebhookProcessor
}

func NewWorker(cfg *config.RedisConfig, mailer Mailer, payments WebhookProcessor) *Worker {
	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logging.Error("process task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	return &Worker{
		server:   server,
		mailer:   mailer,
		payments: payments,
	}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, w.HandleEmailDelivery)
	mux.HandleFunc(TypePaymentWebhook, w.HandlePaymentWebhook)
	return mux
}

// Run blocks until the process receives a termination signal.
func (w *Worker) Run() error {
	return w.server.Run(w.Mux())
}

func (w *Worker) Close() {
	if w.server != nil {
		w.server.Shutdown()
	}
}

func (w *Worker) HandleEmailDelivery(ctx context.Context, t *asynq.Task) error {
	var p EmailDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	id, err := w.mailer.SendEmail(ctx, aws.Email{To: p.To, Subject: p.Subject, Text: p.Text, HTML: p.HTML})
	if err != nil {
		return fmt.Errorf("mailer.SendEmail failed: %w", err)
	}

	logging.Info("Sent email", "to", p.To, "subject", p.Subject, "message_id", id)
	return nil
}

func (w *Worker) HandlePaymentWebhook(ctx context.Context, t *asynq.Task) error {
	var p PaymentWebhookPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	ctx, cancel := context.WithTimeout(ctx, config.WebhookProcessTimeout)
	defer cancel()

	if err := w.payments.ProcessWebhook(ctx, p.Event, p.Data); err != nil {
		metrics.WebhookEvent(p.Event, "failed")
		return fmt.Errorf("payment webhook %s failed: %w", p.Event, err)
	}
	metrics.WebhookEvent(p.Event, "processed")
	return nil
}
