package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resort/internal/models"
)

type PaymentClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

type PaymentConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	ReturnURL     string
	Timeout       time.Duration
}

// Gateway resources use a JSON:API style envelope: {"data": {"id", "attributes"}}
type gatewayEnvelope[T any] struct {
	Data struct {
		ID         string `json:"id,omitempty"`
		Attributes T      `json:"attributes"`
	} `json:"data"`
}

type intentAttributes struct {
	Amount               int64    `json:"amount"`
	Currency             string   `json:"currency"`
	PaymentMethodAllowed []string `json:"payment_method_allowed"`
	CaptureType          string   `json:"capture_type,omitempty"`
	Status               string   `json:"status,omitempty"`
	NextAction           *struct {
		Type     string `json:"type"`
		Redirect struct {
			URL       string `json:"url"`
			ReturnURL string `json:"return_url"`
		} `json:"redirect"`
	} `json:"next_action,omitempty"`
}

type methodAttributes struct {
	Type    string             `json:"type"`
	Billing models.BillingInfo `json:"billing"`
}

type attachAttributes struct {
	PaymentMethod string `json:"payment_method"`
	ReturnURL     string `json:"return_url"`
}

type gatewayError struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PaymentClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (pc *PaymentClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, pc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(pc.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var gwErr gatewayError
		if err := json.NewDecoder(resp.Body).Decode(&gwErr); err == nil && len(gwErr.Errors) > 0 {
			return fmt.Errorf("%s %s: %s (%s)", method, path, gwErr.Errors[0].Detail, gwErr.Errors[0].Code)
		}
		return fmt.Errorf("%s %s: unexpected status code: %d", method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateIntent opens a payment intent for amount (minor units).
func (pc *PaymentClient) CreateIntent(ctx context.Context, amount int64, allowedMethods []string) (string, error) {
	var req gatewayEnvelope[intentAttributes]
	req.Data.Attributes = intentAttributes{
		Amount:               amount,
		Currency:             "PHP",
		PaymentMethodAllowed: allowedMethods,
		CaptureType:          "automatic",
	}

	var resp gatewayEnvelope[intentAttributes]
	if err := pc.do(ctx, http.MethodPost, "/payment_intents", req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("gateway returned an intent without id")
	}
	return resp.Data.ID, nil
}

func (pc *PaymentClient) CreateMethod(ctx context.Context, methodType string, billing models.BillingInfo) (string, error) {
	var req gatewayEnvelope[methodAttributes]
	req.Data.Attributes = methodAttributes{Type: methodType, Billing: billing}

	var resp gatewayEnvelope[methodAttributes]
	if err := pc.do(ctx, http.MethodPost, "/payment_methods", req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("gateway returned a payment method without id")
	}
	return resp.Data.ID, nil
}

// Attach binds a method to an intent; e-wallets answer with a redirect.
func (pc *PaymentClient) Attach(ctx context.Context, intentID, methodID, returnURL string) (*models.AttachResult, error) {
	var req gatewayEnvelope[attachAttributes]
	req.Data.Attributes = attachAttributes{PaymentMethod: methodID, ReturnURL: returnURL}

	var resp gatewayEnvelope[intentAttributes]
	if err := pc.do(ctx, http.MethodPost, "/payment_intents/"+intentID+"/attach", req, &resp); err != nil {
		return nil, err
	}

	result := &models.AttachResult{Status: models.IntentStatus(resp.Data.Attributes.Status)}
	if next := resp.Data.Attributes.NextAction; next != nil && next.Type == "redirect" {
		result.RedirectURL = next.Redirect.URL
	}
	if result.Status == "" {
		return nil, fmt.Errorf("gateway returned an intent without status")
	}
	return result, nil
}

func (pc *PaymentClient) GetIntent(ctx context.Context, intentID string) (models.IntentStatus, error) {
	var resp gatewayEnvelope[intentAttributes]
	if err := pc.do(ctx, http.MethodGet, "/payment_intents/"+intentID, nil, &resp); err != nil {
		return "", err
	}
	if resp.Data.Attributes.Status == "" {
		return "", fmt.Errorf("gateway returned an intent without status")
	}
	return models.IntentStatus(resp.Data.Attributes.Status), nil
}
