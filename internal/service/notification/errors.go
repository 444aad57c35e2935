package notification

import "errors"

// Sentinel errors for the notification dispatch path.
var (
	ErrSettingNotFound  = errors.New("notification setting not found")
	ErrTemplateNotFound = errors.New("email template not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrNoRecipientEmail = errors.New("order has no recipient email")
	ErrUnresolvedTokens = errors.New("template has unresolved tokens")
)
