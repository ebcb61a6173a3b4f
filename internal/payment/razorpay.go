package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/resilience"
)

// Razorpay implements Provider against the Razorpay orders API.
type Razorpay struct {
	keyID         string
	keySecret     string
	webhookSecret string
	client        *razorpay.Client
	breaker       *resilience.Breaker
}

// NewRazorpay builds a provider. The breaker may be nil.
func NewRazorpay(keyID, keySecret, webhookSecret string, breaker *resilience.Breaker) *Razorpay {
	return &Razorpay{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		client:        razorpay.NewClient(keyID, keySecret),
		breaker:       breaker,
	}
}

func (p *Razorpay) Name() string  { return "razorpay" }
func (p *Razorpay) KeyID() string { return p.keyID }

// CreateOrder opens an order through the Razorpay API.
func (p *Razorpay) CreateOrder(ctx context.Context, req ProviderOrderRequest) (ProviderOrder, error) {
	if strings.TrimSpace(p.keyID) == "" || strings.TrimSpace(p.keySecret) == "" {
		return ProviderOrder{}, errors.New("razorpay credentials not configured")
	}
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	var body map[string]interface{}
	call := func(context.Context) error {
		var err error
		body, err = p.client.Order.Create(data, nil)
		return err
	}
	var err error
	if p.breaker != nil {
		err = p.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return ProviderOrder{}, fmt.Errorf("razorpay create order: %w", err)
	}
	return parseRazorpayOrder(body)
}

func parseRazorpayOrder(body map[string]interface{}) (ProviderOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return ProviderOrder{}, errors.New("razorpay create order: missing order id")
	}
	order := ProviderOrder{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	switch v := body["amount"].(type) {
	case float64:
		order.Amount = int64(v)
	case int64:
		order.Amount = v
	case int:
		order.Amount = int64(v)
	}
	return order, nil
}

// VerifyPaymentSignature checks HMAC-SHA256("orderId|paymentId") against the key secret.
func (p *Razorpay) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if p.keySecret == "" || signature == "" {
		return false
	}
	expected := computeSignature(p.keySecret, orderID+"|"+paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// VerifyWebhookSignature checks the webhook HMAC over the raw body.
func (p *Razorpay) VerifyWebhookSignature(body []byte, signature string) bool {
	if p.webhookSecret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), strings.TrimSpace(signature), p.webhookSecret)
}

func computeSignature(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
