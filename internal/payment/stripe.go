package payment

import (
	"context"
	"errors"
	"log"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeGateway implements Gateway on top of the Stripe API.  Holds are
// expressed as checkout sessions whose payment intent uses manual capture;
// split transactions use a destination charge with an application fee so a
// later capture routes the restaurant share automatically.
type StripeGateway struct {
	sc *client.API
}

// NewStripeGateway constructs a gateway using the given secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{sc: sc}
}

// Authorize creates a manual-capture checkout session.  The consumer pays
// on the hosted page; funds stay held until Capture or Void.
func (g *StripeGateway) Authorize(ctx context.Context, p AuthorizeParams) (*CheckoutSession, error) {
	intentData := &stripe.CheckoutSessionPaymentIntentDataParams{
		CaptureMethod: stripe.String("manual"),
	}
	if p.PayoutAccountRef != "" {
		intentData.ApplicationFeeAmount = stripe.Int64(p.ApplicationFeeCents)
		intentData.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(p.PayoutAccountRef),
		}
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.ConsumerRef),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		PaymentIntentData: intentData,
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Surprise bag"),
					},
				},
			},
		},
	}
	params.Context = ctx
	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		log.Printf("stripe: create checkout session failed: %v", err)
		return nil, ErrAuthorizationFailed
	}
	return &CheckoutSession{SessionRef: sess.ID, CheckoutURL: sess.URL}, nil
}

// LookupSession resolves a session to its intent, reporting whether the
// intent already settled (automatic-capture sessions) so the caller can
// pick the degenerate accept path.
func (g *StripeGateway) LookupSession(ctx context.Context, sessionRef string) (*SessionInfo, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	sess, err := g.sc.CheckoutSessions.Get(sessionRef, params)
	if err != nil {
		return nil, err
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid || sess.PaymentIntent == nil {
		return nil, ErrSessionNotPaid
	}
	return &SessionInfo{
		SessionRef:  sess.ID,
		IntentRef:   sess.PaymentIntent.ID,
		AmountCents: sess.AmountTotal,
		Captured:    sess.PaymentIntent.Status == stripe.PaymentIntentStatusSucceeded,
		FundsRouted: sess.PaymentIntent.TransferData != nil,
	}, nil
}

// Capture settles a held intent.  Stripe rejects a second capture with an
// unexpected-state error, which is mapped onto the idempotent sentinels so
// callers never double-charge.
func (g *StripeGateway) Capture(ctx context.Context, intentRef string) (int64, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	pi, err := g.sc.PaymentIntents.Capture(intentRef, params)
	if err != nil {
		if state, stErr := g.IntentStatus(ctx, intentRef); stErr == nil {
			switch state {
			case IntentCaptured:
				return 0, ErrAlreadyCaptured
			case IntentVoided:
				return 0, ErrAlreadyVoided
			}
		}
		log.Printf("stripe: capture %s failed: %v", intentRef, err)
		return 0, ErrCaptureFailed
	}
	return pi.AmountReceived, nil
}

// Void releases an uncaptured hold.
func (g *StripeGateway) Void(ctx context.Context, intentRef string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := g.sc.PaymentIntents.Cancel(intentRef, params); err != nil {
		var sErr *stripe.Error
		if errors.As(err, &sErr) && sErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
			if state, stErr := g.IntentStatus(ctx, intentRef); stErr == nil {
				switch state {
				case IntentCaptured:
					return ErrAlreadyCaptured
				case IntentVoided:
					return ErrAlreadyVoided
				}
			}
		}
		return err
	}
	return nil
}

// IntentStatus re-queries the processor for the intent's true state.
func (g *StripeGateway) IntentStatus(ctx context.Context, intentRef string) (IntentState, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.sc.PaymentIntents.Get(intentRef, params)
	if err != nil {
		return IntentUnknown, err
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return IntentHeld, nil
	case stripe.PaymentIntentStatusSucceeded:
		return IntentCaptured, nil
	case stripe.PaymentIntentStatusCanceled:
		return IntentVoided, nil
	default:
		return IntentUnknown, nil
	}
}

// Transfer moves the restaurant share to a connected account.
func (g *StripeGateway) Transfer(ctx context.Context, accountRef string, amountCents int64, currency, groupRef string) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(accountRef),
		TransferGroup: stripe.String(groupRef),
	}
	params.Context = ctx
	tr, err := g.sc.Transfers.New(params)
	if err != nil {
		log.Printf("stripe: transfer to %s failed: %v", accountRef, err)
		return "", ErrTransferFailed
	}
	return tr.ID, nil
}

// AccountChargesEnabled reports whether a connected account can receive
// transfers.
func (g *StripeGateway) AccountChargesEnabled(ctx context.Context, accountRef string) (bool, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := g.sc.Accounts.GetByID(accountRef, params)
	if err != nil {
		return false, err
	}
	return acct.ChargesEnabled, nil
}
