package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"dojo/internal/adapters/gateway"
	"dojo/internal/domain/payment"
)

// PaymentStoreForStart defines the store interface needed by StartPayment.
type PaymentStoreForStart interface {
	Save(ctx context.Context, p payment.Payment) error
}

// StartPaymentInput carries the payer and the payment type.
type StartPaymentInput struct {
	MemberID         string
	MembershipNumber string
	Email            string
	Type             payment.Type
	// AmountCents overrides the configured amount, e.g. an event's own fee.
	AmountCents int64
	// Label is appended to the reference, e.g. the event title.
	Label string
}

// StartPaymentDeps holds dependencies for StartPayment.
type StartPaymentDeps struct {
	PaymentStore PaymentStoreForStart
	Gateway      gateway.Gateway
	Signer       *gateway.ReturnSigner
	Amounts      payment.Amounts
	BaseURL      string
	Now          func() time.Time
	GenerateID   func() string
}

// ExecuteStartPayment creates a pending payment and asks the gateway for a link.
// The gateway is called once; on failure the payment is marked failed and the error
// wraps gateway.ErrUnavailable.
// PRE: in.MemberID names an existing member
// POST: a payment row exists; on success it carries the link URL
func ExecuteStartPayment(ctx context.Context, in StartPaymentInput, deps StartPaymentDeps) (payment.Payment, gateway.Link, error) {
	amount := in.AmountCents
	if amount <= 0 {
		var err error
		amount, err = deps.Amounts.For(in.Type)
		if err != nil {
			return payment.Payment{}, gateway.Link{}, err
		}
	}
	now := clock(deps.Now)

	p := payment.Payment{
		ID:          newID(deps.GenerateID),
		MemberID:    in.MemberID,
		Type:        in.Type,
		AmountCents: amount,
		Currency:    payment.Currency,
		Reference:   paymentReference(in),
		Status:      payment.StatusPending,
		CreatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return payment.Payment{}, gateway.Link{}, err
	}

	successURL, err := returnURL(deps, "/payment/success", p.ID, payment.StatusPaid)
	if err != nil {
		return payment.Payment{}, gateway.Link{}, err
	}
	cancelURL, err := returnURL(deps, "/payment/cancelled", p.ID, payment.StatusCancelled)
	if err != nil {
		return payment.Payment{}, gateway.Link{}, err
	}

	if err := deps.PaymentStore.Save(ctx, p); err != nil {
		return payment.Payment{}, gateway.Link{}, fmt.Errorf("save payment: %w", err)
	}

	link, err := deps.Gateway.CreateLink(ctx, gateway.LinkRequest{
		PaymentID:   p.ID,
		Reference:   p.Reference,
		Type:        p.Type,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Email:       in.Email,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		p.Status = payment.StatusFailed
		p.CompletedAt = now
		if saveErr := deps.PaymentStore.Save(ctx, p); saveErr != nil {
			slog.Error("payment_event", "event", "failure_not_saved", "payment_id", p.ID, "error", saveErr)
		}
		slog.Warn("payment_event", "event", "link_failed", "payment_id", p.ID, "type", p.Type, "error", err)
		if !errors.Is(err, gateway.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
		}
		return p, gateway.Link{}, err
	}

	p.LinkURL = link.URL
	p.GatewayRef = link.GatewayRef
	if err := deps.PaymentStore.Save(ctx, p); err != nil {
		return payment.Payment{}, gateway.Link{}, fmt.Errorf("save payment link: %w", err)
	}
	slog.Info("payment_event", "event", "link_created", "payment_id", p.ID, "type", p.Type, "amount_cents", p.AmountCents)
	return p, link, nil
}

func paymentReference(in StartPaymentInput) string {
	ref := in.MembershipNumber + "-" + string(in.Type)
	if in.Label != "" {
		ref += "-" + strings.Join(strings.Fields(in.Label), "-")
	}
	if len(ref) > 80 {
		ref = ref[:80]
	}
	return ref
}

func returnURL(deps StartPaymentDeps, path, paymentID, outcome string) (string, error) {
	token, err := deps.Signer.Sign(paymentID, outcome)
	if err != nil {
		return "", fmt.Errorf("sign return url: %w", err)
	}
	return strings.TrimRight(deps.BaseURL, "/") + path + "?token=" + url.QueryEscape(token), nil
}

// PaymentStoreForComplete defines the store interface needed by CompletePayment.
type PaymentStoreForComplete interface {
	GetByID(ctx context.Context, id string) (payment.Payment, error)
	Complete(ctx context.Context, id, outcome, gatewayRef string, now time.Time) (bool, error)
}

// CompletePaymentInput carries the return token and the route it arrived on.
type CompletePaymentInput struct {
	Token   string
	Outcome string // payment.StatusPaid or payment.StatusCancelled
}

// CompletePaymentDeps holds dependencies for CompletePayment.
type CompletePaymentDeps struct {
	PaymentStore PaymentStoreForComplete
	Gateway      gateway.Gateway
	Signer       *gateway.ReturnSigner
	Now          func() time.Time
}

// ExecuteCompletePayment records the outcome carried by a signed return URL once the
// provider agrees with it. Return URLs pass through the payer's browser, so a success
// token alone never marks a payment paid.
// PRE: in.Token was issued by ExecuteStartPayment
// POST: the payment left pending with the token's outcome, or payment.ErrAlreadyCompleted
// is returned together with the payment as stored, or gateway.ErrUnconfirmed when the
// provider disagrees
// INVARIANT: a token for one outcome never completes a payment with another
func ExecuteCompletePayment(ctx context.Context, in CompletePaymentInput, deps CompletePaymentDeps) (payment.Payment, error) {
	claims, err := deps.Signer.Verify(in.Token)
	if err != nil {
		slog.Warn("payment_event", "event", "return_rejected", "reason", "invalid_token")
		return payment.Payment{}, err
	}
	if claims.Outcome != in.Outcome {
		slog.Warn("payment_event", "event", "return_rejected", "reason", "outcome_mismatch", "payment_id", claims.PaymentID())
		return payment.Payment{}, gateway.ErrInvalidReturnToken
	}

	p, err := deps.PaymentStore.GetByID(ctx, claims.PaymentID())
	if err != nil {
		return payment.Payment{}, err
	}
	if !p.IsPending() {
		return p, payment.ErrAlreadyCompleted
	}
	if err := confirmOutcome(ctx, deps.Gateway, p, in.Outcome); err != nil {
		return p, err
	}

	if err := p.Complete(in.Outcome, clock(deps.Now)); err != nil {
		return p, err
	}
	changed, err := deps.PaymentStore.Complete(ctx, p.ID, p.Status, p.GatewayRef, p.CompletedAt)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("complete payment: %w", err)
	}
	if !changed {
		// another request completed it between the read and the update
		stored, err := deps.PaymentStore.GetByID(ctx, p.ID)
		if err != nil {
			return payment.Payment{}, err
		}
		return stored, payment.ErrAlreadyCompleted
	}
	slog.Info("payment_event", "event", "completed", "payment_id", p.ID, "status", p.Status)
	return p, nil
}

// confirmOutcome checks the return against the provider's record of the link.
// A paid return needs the provider to say paid; a cancel is refused only when the provider says paid.
func confirmOutcome(ctx context.Context, gw gateway.Gateway, p payment.Payment, outcome string) error {
	status, err := gw.LinkStatus(ctx, p.GatewayRef)
	if err != nil {
		slog.Warn("payment_event", "event", "confirm_failed", "payment_id", p.ID, "error", err)
		return err
	}
	paid := status == payment.StatusPaid
	if paid != (outcome == payment.StatusPaid) {
		slog.Warn("payment_event", "event", "return_rejected", "reason", "gateway_disagrees",
			"payment_id", p.ID, "outcome", outcome, "gateway_status", status)
		return gateway.ErrUnconfirmed
	}
	return nil
}
