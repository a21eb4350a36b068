package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is an HTTP client for the payment processor API
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a new processor API client
func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chargePayload struct {
	TransactionAmount int64                  `json:"transaction_amount"`
	CurrencyID        string                 `json:"currency_id,omitempty"`
	Token             string                 `json:"token"`
	Installments      int                    `json:"installments"`
	ExternalReference string                 `json:"external_reference"`
	Description       string                 `json:"description,omitempty"`
	Payer             chargePayer            `json:"payer"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type chargePayer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount int64       `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
}

type merchantOrderResponse struct {
	ID                json.Number `json:"id"`
	ExternalReference string      `json:"external_reference"`
	Payments          []struct {
		ID json.Number `json:"id"`
	} `json:"payments"`
}

type searchResponse struct {
	Results []paymentResponse `json:"results"`
}

// CreateCharge submits a charge to the processor. The idempotency key makes
// retried submissions of the same settlement leg return the original charge.
func (c *Client) CreateCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	payload := chargePayload{
		TransactionAmount: req.Amount,
		CurrencyID:        req.Currency,
		Token:             req.Token,
		Installments:      req.Installments,
		ExternalReference: req.ExternalReference,
		Description:       req.Description,
		Payer: chargePayer{
			ID:    req.PayerID,
			Email: req.PayerEmail,
			Name:  req.PayerName,
		},
		Metadata: req.Metadata,
	}
	if payload.Installments == 0 {
		payload.Installments = 1
	}

	var resp paymentResponse
	headers := map[string]string{"X-Idempotency-Key": req.IdempotencyKey}
	if err := c.do(ctx, http.MethodPost, "/v1/payments", headers, payload, &resp); err != nil {
		return nil, err
	}

	return &ChargeResult{
		GatewayPaymentID: resp.ID.String(),
		Status:           MapStatus(resp.Status),
		StatusDetail:     resp.StatusDetail,
		RawStatus:        resp.Status,
	}, nil
}

// GetPayment fetches the authoritative state of a payment
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentResource, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, nil, &resp); err != nil {
		return nil, err
	}
	return toPaymentResource(&resp), nil
}

// GetMerchantOrder fetches a merchant order and the payment ids attached to it
func (c *Client) GetMerchantOrder(ctx context.Context, orderID string) (*MerchantOrderResource, error) {
	var resp merchantOrderResponse
	if err := c.do(ctx, http.MethodGet, "/merchant_orders/"+orderID, nil, nil, &resp); err != nil {
		return nil, err
	}
	order := &MerchantOrderResource{
		ID:                resp.ID.String(),
		ExternalReference: resp.ExternalReference,
	}
	for _, p := range resp.Payments {
		order.PaymentIDs = append(order.PaymentIDs, p.ID.String())
	}
	return order, nil
}

// FindPaymentByReference searches processor payments by external reference.
// Returns the most recent match, or nil when the processor has no record of
// the reference.
func (c *Client) FindPaymentByReference(ctx context.Context, externalReference string) (*PaymentResource, error) {
	var resp searchResponse
	path := "/v1/payments/search?sort=date_created&criteria=desc&external_reference=" + externalReference
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return toPaymentResource(&resp.Results[0]), nil
}

func toPaymentResource(resp *paymentResponse) *PaymentResource {
	return &PaymentResource{
		ID:                resp.ID.String(),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		Amount:            resp.TransactionAmount,
		Currency:          resp.CurrencyID,
	}
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{
			Code:      "network_error",
			Message:   fmt.Sprintf("request to processor failed: %v", err),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return &GatewayError{
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   fmt.Sprintf("processor error: %s", string(respBody)),
			Retryable: true,
		}
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = string(respBody)
		}
		return &GatewayError{
			Code:      apiErr.Error,
			Message:   msg,
			Retryable: resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
