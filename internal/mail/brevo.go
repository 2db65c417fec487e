package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultBrevoURL is the transactional e-mail endpoint.
const DefaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

// BrevoConfig configures the Brevo HTTP sender.
type BrevoConfig struct {
	APIKey      string
	URL         string // DefaultBrevoURL when empty
	SenderEmail string
	SenderName  string
	Timeout     time.Duration
}

// Brevo sends codes through the Brevo transactional API.
type Brevo struct {
	cfg    BrevoConfig
	client *http.Client
	log    *zap.Logger
}

// NewBrevo builds a Brevo sender.
func NewBrevo(cfg BrevoConfig, log *zap.Logger) *Brevo {
	if cfg.URL == "" {
		cfg.URL = DefaultBrevoURL
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "DITrix"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Brevo{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: log}
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoPayload struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// SendCode posts one message; any non-2xx answer is an error.
func (b *Brevo) SendCode(ctx context.Context, to, code string, purpose Purpose) error {
	payload, err := json.Marshal(brevoPayload{
		Sender:      brevoAddress{Name: b.cfg.SenderName, Email: b.cfg.SenderEmail},
		To:          []brevoAddress{{Email: to}},
		Subject:     Subject(purpose),
		HTMLContent: body(code, purpose),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.cfg.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("brevo send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("brevo send failed (%d): %s", resp.StatusCode, bytes.TrimSpace(text))
	}

	var out struct {
		MessageID string `json:"messageId"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	b.log.Info("code mail sent", zap.String("purpose", string(purpose)), zap.String("message_id", out.MessageID))
	return nil
}
