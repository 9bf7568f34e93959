// Package gateway requests payment links from the payment provider.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"dojo/internal/domain/payment"
)

// ErrUnavailable wraps every failure talking to the provider.
var ErrUnavailable = errors.New("payment gateway unavailable")

// LinkRequest asks for a hosted payment page keyed by payment type and amount.
type LinkRequest struct {
	PaymentID   string
	Reference   string
	Type        payment.Type
	AmountCents int64
	Currency    string
	Email       string
	SuccessURL  string
	CancelURL   string
}

// Link is the provider's hosted payment page.
type Link struct {
	URL        string
	QRCodeURL  string
	GatewayRef string
}

// ErrUnconfirmed means the provider does not report the payment as paid.
var ErrUnconfirmed = errors.New("payment not confirmed by gateway")

// Gateway creates payment links and reports what became of them.
type Gateway interface {
	CreateLink(ctx context.Context, req LinkRequest) (Link, error)
	// LinkStatus returns the provider's status for a link: one of the payment.Status values.
	LinkStatus(ctx context.Context, gatewayRef string) (string, error)
}

// RestGateway talks to the provider's REST API.
// Calls are never retried; the visitor sees the error and may try again.
type RestGateway struct {
	client *resty.Client
}

// NewRestGateway creates a client for baseURL authenticated with apiKey.
func NewRestGateway(baseURL, apiKey string, timeout time.Duration) *RestGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &RestGateway{client: client}
}

type createLinkBody struct {
	Type       string `json:"type"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Reference  string `json:"reference"`
	Email      string `json:"email,omitempty"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	ExternalID string `json:"external_id"`
}

type createLinkResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	QRCodeURL string `json:"qr_code_url"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// CreateLink posts the payment and returns the hosted page.
// POST: returns an error wrapping ErrUnavailable on transport failure or a non-2xx response
func (g *RestGateway) CreateLink(ctx context.Context, req LinkRequest) (Link, error) {
	var out createLinkResponse
	var apiErr errorResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(createLinkBody{
			Type:       string(req.Type),
			Amount:     req.AmountCents,
			Currency:   req.Currency,
			Reference:  req.Reference,
			Email:      req.Email,
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
			ExternalID: req.PaymentID,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/payment-links")
	if err != nil {
		slog.Error("payment_gateway_failed", "payment_id", req.PaymentID, "error", err)
		return Link{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		slog.Error("payment_gateway_rejected", "payment_id", req.PaymentID,
			"status", resp.StatusCode(), "message", apiErr.Message)
		return Link{}, fmt.Errorf("%w: status %d %s", ErrUnavailable, resp.StatusCode(), apiErr.Message)
	}
	if out.URL == "" {
		return Link{}, fmt.Errorf("%w: response has no payment url", ErrUnavailable)
	}
	slog.Info("payment_link_created", "payment_id", req.PaymentID, "gateway_ref", out.ID)
	return Link{URL: out.URL, QRCodeURL: out.QRCodeURL, GatewayRef: out.ID}, nil
}

type linkStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// LinkStatus asks the provider whether the link was paid. Unknown provider states read as pending.
// POST: returns an error wrapping ErrUnavailable on transport failure or a non-2xx response
func (g *RestGateway) LinkStatus(ctx context.Context, gatewayRef string) (string, error) {
	if gatewayRef == "" {
		return "", fmt.Errorf("%w: payment has no gateway reference", ErrUnconfirmed)
	}
	var out linkStatusResponse
	var apiErr errorResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("ref", gatewayRef).
		SetResult(&out).
		SetError(&apiErr).
		Get("/payment-links/{ref}")
	if err != nil {
		slog.Error("payment_gateway_failed", "gateway_ref", gatewayRef, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		slog.Error("payment_gateway_rejected", "gateway_ref", gatewayRef,
			"status", resp.StatusCode(), "message", apiErr.Message)
		return "", fmt.Errorf("%w: status %d %s", ErrUnavailable, resp.StatusCode(), apiErr.Message)
	}
	switch out.Status {
	case payment.StatusPaid, payment.StatusCancelled, payment.StatusFailed:
		return out.Status, nil
	}
	return payment.StatusPending, nil
}

// DevGateway skips the provider and sends the payer straight to the success page.
type DevGateway struct{}

// CreateLink returns the success URL as the payment link.
func (DevGateway) CreateLink(_ context.Context, req LinkRequest) (Link, error) {
	return Link{URL: req.SuccessURL, GatewayRef: "dev-" + req.PaymentID}, nil
}

// LinkStatus reports every dev link as paid.
func (DevGateway) LinkStatus(context.Context, string) (string, error) {
	return payment.StatusPaid, nil
}
