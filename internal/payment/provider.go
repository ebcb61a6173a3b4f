package payment

import "context"

// ProviderOrderRequest captures what the gateway needs to open an order.
type ProviderOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// ProviderOrder is the gateway's view of a newly created order.
type ProviderOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Provider abstracts the operations required from an upstream payment gateway.
type Provider interface {
	Name() string
	// KeyID is the public key handed to checkout clients.
	KeyID() string
	CreateOrder(ctx context.Context, req ProviderOrderRequest) (ProviderOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}
