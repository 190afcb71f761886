// Package notifications renders transactional e-mails and hands them to the task queue.
package notifications

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/hibiken/asynq"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/queue"
)

const (
	TemplateStaffWelcome = "staff_welcome"
	TemplateMFAEnabled   = "mfa_enabled"
)

//go:embed templates/*.html
var templateFS embed.FS

// each .html file defines {{define "name:subject"}}, {{define "name:body"}}
// and {{define "name:text"}}, where name matches the filename.
func LoadTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}
	return tmpl, nil
}

// subset of TaskQueue.
type queueService interface {
	Enqueue(ctx context.Context, taskType string, data any, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Dispatcher struct {
	queue     queueService
	templates *template.Template
}

func NewDispatcher(q queueService, tmpl *template.Template) *Dispatcher {
	return &Dispatcher{queue: q, templates: tmpl}
}

// Send renders the named template and enqueues delivery. The request that
// triggered the mail never waits on SES.
func (d *Dispatcher) Send(ctx context.Context, to, name string, data any) error {
	payload, err := d.Render(name, data)
	if err != nil {
		return err
	}
	payload.To = to

	if _, err := d.queue.Enqueue(ctx, queue.TypeEmailDelivery, payload, asynq.Queue(queue.QueueDefault), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("failed to enqueue %s email: %w", name, err)
	}

	logging.FromContext(ctx).Info("queued email", "template", name, "to", to)
	return nil
}

// SendBestEffort logs instead of failing; used where the mail is a courtesy.
func (d *Dispatcher) SendBestEffort(ctx context.Context, to, name string, data any) {
	if err := d.Send(ctx, to, name, data); err != nil {
		logging.FromContext(ctx).Error("failed to send notification email", "template", name, "to", to, "error", err)
	}
}

// Render produces the message without a recipient.
func (d *Dispatcher) Render(name string, data any) (queue.EmailDeliveryPayload, error) {
	var subject, html, text bytes.Buffer
	if err := d.templates.ExecuteTemplate(&subject, name+":subject", data); err != nil {
		return queue.EmailDeliveryPayload{}, fmt.Errorf("render subject for %q: %w", name, err)
	}
	if err := d.templates.ExecuteTemplate(&html, name+":body", data); err != nil {
		return queue.EmailDeliveryPayload{}, fmt.Errorf("render body for %q: %w", name, err)
	}
	if err := d.templates.ExecuteTemplate(&text, name+":text", data); err != nil {
		return queue.EmailDeliveryPayload{}, fmt.Errorf("render text for %q: %w", name, err)
	}

	return queue.EmailDeliveryPayload{
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
