package stripewebhooks

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v75"

	"commission-app/internal/apperr"
	"commission-app/internal/gateway"
	"commission-app/internal/services/payments"
)

var intentOutcomes = map[stripe.EventType]gateway.CallbackStatus{
	"payment_intent.succeeded":      gateway.CallbackSuccess,
	"payment_intent.payment_failed": gateway.CallbackFailed,
	"payment_intent.canceled":       gateway.CallbackCancelled,
}

var errNoPaymentID = errors.New("payment intent carries no payment_id metadata")

func (h *Handler) handlePaymentIntent(ctx context.Context, pi *stripe.PaymentIntent, status gateway.CallbackStatus) (payments.CallbackOutput, error) {
	paymentID := pi.Metadata["payment_id"]
	if paymentID == "" {
		return payments.CallbackOutput{}, apperr.BadRequest(errNoPaymentID.Error())
	}

	in := payments.CallbackInput{
		OrderID:           pi.Metadata["order_id"],
		PaymentID:         paymentID,
		ProviderPaymentID: pi.ID,
		Status:            string(status),
		Currency:          string(pi.Currency),
	}
	if pi.Amount > 0 {
		amount := pi.Amount
		in.AmountCents = &amount
	}
	if pi.LatestCharge != nil {
		in.TransactionID = pi.LatestCharge.ID
	}
	if pi.LastPaymentError != nil {
		in.ErrorMessage = pi.LastPaymentError.Msg
	}
	return h.payments.HandleCallback(ctx, in)
}

func retryable(err error) bool {
	return apperr.KindOf(err) == apperr.KindInternal
}
