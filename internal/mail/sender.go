// Package mail provides transactional email delivery. Two providers are
// supported: Resend (primary, plain HTTPS API) and AWS SES v2 (for
// deployments already running on AWS). Both satisfy Sender; callers never
// know which one is wired in.
package mail

import (
	"context"
	"time"
)

// Message is a single transactional email.
type Message struct {
	To        string
	FromName  string
	FromEmail string
	ReplyTo   string
	Subject   string
	HTML      string
	Text      string
}

// SendResult reports the provider's acceptance of one message.
type SendResult struct {
	Success   bool
	MessageID string
	Provider  string
	SentAt    time.Time
	Error     error
}

// Sender delivers a single email. Implementations return a non-nil
// SendResult with Success=false (and Error set) for provider-side
// rejections; a Go error is reserved for failures before the provider
// could be reached.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}
