package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"propflow/config"
	"propflow/utils"
)

// SMSSender delivers messages through the bulk SMS provider's JSON API.
// Recipients are normalized to South African international format first.
type SMSSender struct {
	cfg    config.SMSConfig
	client *http.Client
}

// smsRequest is the provider's per-message payload
type smsRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	RetryCount     int    `json:"retryCount"`
	ValidityPeriod int    `json:"validityPeriod"`
}

// smsResponse is the provider's per-message result
type smsResponse struct {
	MessageID  int64  `json:"messageId"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

func NewSMSSender(cfg config.SMSConfig) *SMSSender {
	return &SMSSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *SMSSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if s.cfg.ProviderDomain == "" || s.cfg.APIKey == "" {
		return nil, fmt.Errorf("SMS provider is not configured")
	}

	recipient, err := utils.NormalizePhone(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient number: %w", err)
	}

	payload := []smsRequest{{
		SrcNum:         s.cfg.SourceNumber,
		Recipient:      recipient,
		Body:           msg.Body,
		RetryCount:     s.cfg.RetryCount,
		ValidityPeriod: s.cfg.ValidityPeriod,
	}}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v1/send", s.cfg.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit SMS request: %w", err)
	}
	defer resp.Body.Close()

	var results []smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode SMS response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("empty SMS provider response")
	}
	r := results[0]
	if r.StatusCode != 200 || r.Status != "ACCEPTED" {
		return nil, fmt.Errorf("SMS delivery failed for %s: %s (%d)", r.Recipient, r.Status, r.StatusCode)
	}

	return &SendResult{
		MessageID: strconv.FormatInt(r.MessageID, 10),
		Provider:  s.cfg.ProviderName,
		Cost:      s.cfg.CostPerMessage,
	}, nil
}
