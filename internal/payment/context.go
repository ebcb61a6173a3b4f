package payment

import "context"

type ctxKey int

const (
	orderRequestKey ctxKey = iota
	verifyRequestKey
	webhookSignatureKey
)

// WithOrderRequest attaches a validated order payload to ctx.
func WithOrderRequest(ctx context.Context, req OrderRequest) context.Context {
	return context.WithValue(ctx, orderRequestKey, req)
}

// OrderRequestFrom returns the payload attached by OrderGuard.
func OrderRequestFrom(ctx context.Context) (OrderRequest, bool) {
	req, ok := ctx.Value(orderRequestKey).(OrderRequest)
	return req, ok
}

// WithVerifyRequest attaches a shape-checked verification payload to ctx.
func WithVerifyRequest(ctx context.Context, req VerifyRequest) context.Context {
	return context.WithValue(ctx, verifyRequestKey, req)
}

// VerifyRequestFrom returns the payload attached by VerifyGuard.
func VerifyRequestFrom(ctx context.Context) (VerifyRequest, bool) {
	req, ok := ctx.Value(verifyRequestKey).(VerifyRequest)
	return req, ok
}

// WithWebhookSignature attaches the raw X-Razorpay-Signature value to ctx.
func WithWebhookSignature(ctx context.Context, sig string) context.Context {
	return context.WithValue(ctx, webhookSignatureKey, sig)
}

// WebhookSignatureFrom returns the header value captured by RequireWebhookSignature.
func WebhookSignatureFrom(ctx context.Context) (string, bool) {
	sig, ok := ctx.Value(webhookSignatureKey).(string)
	return sig, ok
}
