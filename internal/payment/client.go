// Package payment implements the external payment provider client.
// Confirm approves a participant's deposit payment; Release pays the
// collected total out to the venue.
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// alreadyProcessedCode is returned by the provider when a confirmation
// is retried for a payment it has already settled.  Treated as success
// so client retries after a dropped response stay idempotent.
const alreadyProcessedCode = "ALREADY_PROCESSED_PAYMENT"

// Client talks to the provider's REST API with secret-key basic auth.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type confirmResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Msg    string `json:"message"`
}

// Confirm finalizes a payment the participant approved on the client
// side.  Anything but a DONE status (or an already-processed retry) is
// an error and no money moved.
func (c *Client) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) error {
	var res confirmResponse
	err := c.post(ctx, "/v1/payments/confirm", confirmRequest{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
	}, &res)
	if err != nil {
		return err
	}
	if res.Code == alreadyProcessedCode {
		return nil
	}
	if res.Code != "" {
		return fmt.Errorf("payment confirm rejected: %s (%s)", res.Code, res.Msg)
	}
	if res.Status != "DONE" {
		return fmt.Errorf("payment confirm status %q, want DONE", res.Status)
	}
	return nil
}

type releaseRequest struct {
	PaymentKey    string `json:"paymentKey"`
	PayoutAccount string `json:"payoutAccount"`
}

type releaseResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Msg    string `json:"message"`
}

// Release transfers the collected deposit to the venue's account.
func (c *Client) Release(ctx context.Context, paymentKey, payoutAccount string) error {
	var res releaseResponse
	err := c.post(ctx, "/v1/payments/release", releaseRequest{
		PaymentKey:    paymentKey,
		PayoutAccount: payoutAccount,
	}, &res)
	if err != nil {
		return err
	}
	if res.Code != "" {
		return fmt.Errorf("payout rejected: %s (%s)", res.Code, res.Msg)
	}
	if res.Status != "RELEASED" {
		return fmt.Errorf("payout status %q, want RELEASED", res.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("provider response %d: %w", resp.StatusCode, err)
	}
	return nil
}
