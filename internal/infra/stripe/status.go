package stripe

import (
	"strings"

	stripeapi "github.com/stripe/stripe-go/v75"

	"commission-app/internal/domain/billing"
	"commission-app/internal/gateway"
)

// NormalizeIntentStatus maps a PaymentIntent status onto the local payment
// vocabulary. Anything awaiting the customer stays pending.
func NormalizeIntentStatus(s stripeapi.PaymentIntentStatus) billing.Status {
	switch strings.TrimSpace(string(s)) {
	case string(stripeapi.PaymentIntentStatusSucceeded):
		return billing.StatusSuccess
	case string(stripeapi.PaymentIntentStatusProcessing), string(stripeapi.PaymentIntentStatusRequiresCapture):
		return billing.StatusProcessing
	case string(stripeapi.PaymentIntentStatusCanceled):
		return billing.StatusCanceled
	default:
		return billing.StatusPending
	}
}

// callbackStatus reports the settled outcome of an intent, or false while the
// intent is still open.
func callbackStatus(pi *stripeapi.PaymentIntent) (gateway.CallbackStatus, bool) {
	switch NormalizeIntentStatus(pi.Status) {
	case billing.StatusSuccess:
		return gateway.CallbackSuccess, true
	case billing.StatusCanceled:
		return gateway.CallbackCancelled, true
	}
	if pi.Status == stripeapi.PaymentIntentStatusRequiresPaymentMethod && pi.LastPaymentError != nil {
		return gateway.CallbackFailed, true
	}
	return "", false
}
