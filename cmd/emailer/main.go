package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/the-bazaar/bazaar-backend/internal/aws"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/notifications"
	"github.com/the-bazaar/bazaar-backend/internal/queue"
)

type LocalStackEmail struct {
	ID          string    `json:"Id"`
	Timestamp   string    `json:"Timestamp"`
	Subject     string    `json:"Subject"`
	Body        EmailBody `json:"Body"`
	Destination Dest      `json:"Destination"`
}
type EmailBody struct {
	Text string `json:"text_part"`
	HTML string `json:"html_part"`
}
type Dest struct {
	ToAddresses []string `json:"ToAddresses"`
}
type LocalStackResponse struct {
	Messages []LocalStackEmail `json:"messages"`
}

var (
	toPtr       = flag.String("to", "test@thebazaar.local", "Recipient address")
	templatePtr = flag.String("template", notifications.TemplateStaffWelcome, "Template to render (staff_welcome, mfa_enabled)")
	enqueuePtr  = flag.Bool("enqueue", false, "Enqueue the email task for the worker instead of sending directly")
	viewPtr     = flag.Bool("view", false, "View the LocalStack SES inbox")
	sendPtr     = flag.Bool("send", false, "Render and send an email directly through SES")
)

// sample data covering every field the templates read
var sampleData = map[string]any{
	"FullName": "Sample Staff",
	"Role":     "staff",
	"Method":   "totp",
	"At":       "Mon, 02 Jan 2006 15:04:05 UTC",
	"LoginURL": "http://localhost:3002/auth/login",
}

func main() {
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	tmpl, err := notifications.LoadTemplates()
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	// make email-enqueue: the worker picks the task up and sends it
	if *enqueuePtr {
		q, err := queue.NewQueue(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()

		if err := notifications.NewDispatcher(q, tmpl).Send(ctx, *toPtr, *templatePtr, sampleData); err != nil {
			log.Fatalf("Failed to enqueue email: %v", err)
		}
		log.Printf("Enqueued %s email to %s", *templatePtr, *toPtr)
		return
	}

	if *viewPtr {
		viewEmails(cfg.AWS.EndpointURL)
		return
	}

	if *sendPtr {
		msg, err := notifications.NewDispatcher(nil, tmpl).Render(*templatePtr, sampleData)
		if err != nil {
			log.Fatalf("Failed to render email: %v", err)
		}

		svc, err := aws.NewSESService(ctx, cfg.AWS)
		if err != nil {
			log.Fatalf("Failed to create email service: %v", err)
		}

		log.Printf("Sending %s email to %s...", *templatePtr, *toPtr)
		id, err := svc.SendEmail(ctx, aws.Email{To: *toPtr, Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML})
		if err != nil {
			log.Fatalf("Failed to send email: %v", err)
		}
		log.Printf("Email sent, message id %s", id)

		viewEmails(cfg.AWS.EndpointURL)
		return
	}

	flag.Usage()
}

func viewEmails(endpoint string) {
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}
	log.Println("\n--- LocalStack SES Inbox ---")

	resp, err := http.Get(strings.TrimRight(endpoint, "/") + "/_aws/ses")
	if err != nil {
		log.Printf("Failed to fetch LocalStack messages: %v", err)
		return
	}
	defer resp.Body.Close()

	bodyData, _ := io.ReadAll(resp.Body)
	var lsResp LocalStackResponse
	if err := json.Unmarshal(bodyData, &lsResp); err != nil {
		log.Printf("Failed to parse LocalStack response: %v\nRaw body: %s", err, string(bodyData))
		return
	}

	if len(lsResp.Messages) == 0 {
		fmt.Println("No messages found in LocalStack.")
		return
	}

	fmt.Printf("\nFound %d message(s):\n", len(lsResp.Messages))
	for i, msg := range lsResp.Messages {
		fmt.Printf("\n[%d] Time: %s\n", i+1, msg.Timestamp)
		fmt.Printf("To: %v\n", msg.Destination.ToAddresses)
		fmt.Printf("Subject: %s\n", msg.Subject)
		fmt.Printf("Body: %s\n", msg.Body.Text)
		fmt.Println("---------------------------------------------------")
	}
}
