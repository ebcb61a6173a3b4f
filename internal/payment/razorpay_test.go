package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRazorpaySignatures(t *testing.T) {
	p := NewRazorpay("rzp_test_key", "key_secret", "hook_secret", nil)

	sig := computeSignature("key_secret", "order_ABC|pay_XYZ")
	require.Len(t, sig, 64)
	require.True(t, p.VerifyPaymentSignature("order_ABC", "pay_XYZ", sig))
	require.True(t, p.VerifyPaymentSignature("order_ABC", "pay_XYZ", strings.ToUpper(sig)))
	require.False(t, p.VerifyPaymentSignature("order_ABC", "pay_OTHER", sig))
	require.False(t, p.VerifyPaymentSignature("order_ABC", "pay_XYZ", ""))

	body := []byte(`{"event":"payment.captured"}`)
	hook := computeSignature("hook_secret", string(body))
	require.True(t, p.VerifyWebhookSignature(body, hook))
	require.False(t, p.VerifyWebhookSignature(body, sig))
	require.False(t, NewRazorpay("k", "s", "", nil).VerifyWebhookSignature(body, hook))
}

func TestParseRazorpayOrder(t *testing.T) {
	order, err := parseRazorpayOrder(map[string]interface{}{
		"id":       "order_9A33XWu170gUtm",
		"amount":   float64(50000),
		"currency": "INR",
		"receipt":  "rcpt_1",
		"status":   "created",
	})
	require.NoError(t, err)
	require.Equal(t, int64(50000), order.Amount)
	require.Equal(t, "order_9A33XWu170gUtm", order.ID)

	_, err = parseRazorpayOrder(map[string]interface{}{"error": "bad"})
	require.Error(t, err)
}
