// internal/provider/provider.go
package provider

import "context"

// PushPaymentGateway starts a payer-approved payment on the payer's handset.
// The result of the payment arrives later, out of band, on the callback URL.
type PushPaymentGateway interface {
	// GetName returns the provider name
	GetName() string

	// InitiateSTKPush sends the push request and returns the raw acknowledgment
	InitiateSTKPush(ctx context.Context, phoneNumber string, amount int64) (map[string]any, error)
}
