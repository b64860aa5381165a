package notify

import (
	"context"
)

// EmailMessage is one rendered e-mail
type EmailMessage struct {
	To      []string
	Subject string
	Body    string
}

// PushMessage is one rendered push notification
type PushMessage struct {
	Title string
	Body  string
}

// Mailer delivers e-mail notifications. Idempotency per (incident,
// escalation_level, type, channel) is the provider's concern, not the
// dispatcher's.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
	SendBatch(ctx context.Context, msgs []EmailMessage) error
}

// SMSSender delivers SMS notifications
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// PushSender delivers push notifications to device tokens
type PushSender interface {
	Send(ctx context.Context, tokens []string, msg PushMessage) error
}
