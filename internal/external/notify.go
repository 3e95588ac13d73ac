package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type MailConfig struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

type SMSConfig struct {
	BaseURL string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// MailClient sends transactional email through an HTTP provider
type MailClient struct {
	cfg        MailConfig
	httpClient *http.Client
}

type sendEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func NewMailClient(cfg MailConfig) *MailClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &MailClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Enabled reports whether a provider URL is configured.
func (mc *MailClient) Enabled() bool {
	return mc.cfg.BaseURL != ""
}

func (mc *MailClient) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	return postJSON(ctx, mc.httpClient, mc.cfg.BaseURL+"/emails", mc.cfg.APIKey, sendEmailRequest{
		From:    mc.cfg.From,
		To:      to,
		Subject: subject,
		HTML:    htmlBody,
	})
}

// SMSClient sends text messages through an HTTP provider
type SMSClient struct {
	cfg        SMSConfig
	httpClient *http.Client
}

type sendSMSRequest struct {
	APIKey     string `json:"apikey"`
	Number     string `json:"number"`
	Message    string `json:"message"`
	SenderName string `json:"sendername"`
}

func NewSMSClient(cfg SMSConfig) *SMSClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMSClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (sc *SMSClient) Enabled() bool {
	return sc.cfg.BaseURL != ""
}

func (sc *SMSClient) SendSMS(ctx context.Context, number, text string) error {
	return postJSON(ctx, sc.httpClient, sc.cfg.BaseURL+"/messages", "", sendSMSRequest{
		APIKey:     sc.cfg.APIKey,
		Number:     number,
		Message:    text,
		SenderName: sc.cfg.Sender,
	})
}

func postJSON(ctx context.Context, client *http.Client, url, bearer string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
