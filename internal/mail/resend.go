package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/httpretry"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
)

const defaultResendBaseURL = "https://api.resend.com"

// ResendSender sends email through the Resend HTTPS API.
type ResendSender struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewResendSender creates a Resend API client. baseURL is overridable for
// tests; empty means production.
func NewResendSender(apiKey, baseURL string, timeout time.Duration) *ResendSender {
	if baseURL == "" {
		baseURL = defaultResendBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ResendSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, 3),
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// Send delivers one message via POST /emails.
func (s *ResendSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	payload := resendRequest{
		From:    fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail),
		To:      []string{msg.To},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr resendResponse
		_ = json.Unmarshal(respBody, &apiErr)
		errMsg := apiErr.Message
		if errMsg == "" {
			errMsg = string(respBody)
		}
		return &SendResult{
			Success:  false,
			Provider: "resend",
			Error:    fmt.Errorf("resend API error (status %d): %s", resp.StatusCode, errMsg),
		}, nil
	}

	var out resendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode resend response: %w", err)
	}

	logger.Info("resend email accepted", "to", msg.To, "message_id", out.ID)

	return &SendResult{
		Success:   true,
		MessageID: out.ID,
		Provider:  "resend",
		SentAt:    time.Now(),
	}, nil
}
