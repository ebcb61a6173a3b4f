package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
)

// MinAmount is the smallest chargeable amount in minor units (100 paise = ₹1).
const MinAmount int64 = 100

// maxAmount keeps amounts inside the range a float64 represents exactly.
const maxAmount = 1<<53 - 1

var (
	ErrAmountRequired       = errors.New("Amount is required")
	ErrAmountNotNumber      = errors.New("Amount must be a number")
	ErrAmountNotPositive    = errors.New("Amount must be greater than 0")
	ErrAmountWrongUnit      = errors.New("Amount must be in paise (minimum 100 = ₹1)")
	ErrAmountNotWholeNumber = errors.New("Amount must be a whole number of paise")
	ErrAmountTooLarge       = errors.New("Amount exceeds the maximum allowed")
)

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Supported enumerations for order creation.
var (
	Currencies   = []string{"INR", "USD"}
	ServiceTypes = []string{"pickup", "premium_service", "donation"}
)

// DefaultCurrency is applied when an order omits its currency.
const DefaultCurrency = "INR"

// NormalizeAmount converts a decoded JSON amount into minor units. nil and
// blank strings count as missing. Generic number and sign checks run before
// the unit check so that 0 or -5 never report the paise hint.
func NormalizeAmount(raw any) (int64, error) {
	var value float64
	switch v := raw.(type) {
	case nil:
		return 0, ErrAmountRequired
	case json.Number:
		f, err := parseDecimal(v.String())
		if err != nil {
			return 0, err
		}
		value = f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, ErrAmountRequired
		}
		f, err := parseDecimal(s)
		if err != nil {
			return 0, err
		}
		value = f
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case int32:
		value = float64(v)
	default:
		return 0, ErrAmountNotNumber
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrAmountNotNumber
	}
	if value <= 0 {
		return 0, ErrAmountNotPositive
	}
	if value < float64(MinAmount) {
		return 0, ErrAmountWrongUnit
	}
	if value > maxAmount {
		return 0, ErrAmountTooLarge
	}
	if value != math.Trunc(value) {
		return 0, ErrAmountNotWholeNumber
	}
	return int64(value), nil
}

func parseDecimal(s string) (float64, error) {
	if !decimalPattern.MatchString(s) {
		return 0, ErrAmountNotNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, ErrAmountTooLarge
		}
		return 0, ErrAmountNotNumber
	}
	return f, nil
}

// OrderRequest is a validated order-creation payload.
type OrderRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	ServiceType   string `json:"serviceType,omitempty"`
	DeviceInfo    string `json:"deviceInfo,omitempty"`
	PickupAddress string `json:"pickupAddress,omitempty"`
}

// VerifyRequest is a shape-checked payment verification payload.
type VerifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// PaymentIDPrefix is the prefix Razorpay assigns to payment identifiers.
const PaymentIDPrefix = "pay_"

type optionalRule struct {
	field   string
	tag     string
	message string
	trim    bool
	assign  func(*OrderRequest, string)
}

var orderOptionalRules = []optionalRule{
	{
		field:   "currency",
		tag:     "oneof=" + strings.Join(Currencies, " "),
		message: "Currency must be either INR or USD",
		assign:  func(r *OrderRequest, v string) { r.Currency = v },
	},
	{
		field:   "serviceType",
		tag:     "oneof=" + strings.Join(ServiceTypes, " "),
		message: "Service type must be one of: " + strings.Join(ServiceTypes, ", "),
		assign:  func(r *OrderRequest, v string) { r.ServiceType = v },
	},
	{
		field:   "deviceInfo",
		tag:     "min=3,max=200",
		message: "Device info must be between 3 and 200 characters",
		trim:    true,
		assign:  func(r *OrderRequest, v string) { r.DeviceInfo = v },
	},
	{
		field:   "pickupAddress",
		tag:     "min=10,max=500",
		message: "Pickup address must be between 10 and 500 characters",
		trim:    true,
		assign:  func(r *OrderRequest, v string) { r.PickupAddress = v },
	},
}

// ValidateOrder checks every field of an order payload independently and
// returns all violations together. Optional fields absent from the payload are
// skipped; a present null is validated and rejected.
func ValidateOrder(payload map[string]any) (OrderRequest, []common.FieldError) {
	var (
		req  OrderRequest
		errs []common.FieldError
	)
	raw, present := payload["amount"]
	if !present {
		raw = nil
	}
	amount, err := NormalizeAmount(raw)
	if err != nil {
		errs = append(errs, common.FieldError{Field: "amount", Message: err.Error(), Value: raw})
	} else {
		req.Amount = amount
	}

	for _, rule := range orderOptionalRules {
		value, ok := payload[rule.field]
		if !ok {
			continue
		}
		s, isString := value.(string)
		if rule.trim {
			s = strings.TrimSpace(s)
		}
		if !isString || !common.Var(s, rule.tag) {
			errs = append(errs, common.FieldError{Field: rule.field, Message: rule.message, Value: value})
			continue
		}
		rule.assign(&req, s)
	}
	return req, errs
}

// ValidateVerification checks the shape of a verification payload. The
// signature is range-checked only; the HMAC comparison happens in Service.
func ValidateVerification(payload map[string]any) (VerifyRequest, []common.FieldError) {
	var (
		req  VerifyRequest
		errs []common.FieldError
	)
	check := func(field, label string, extra func(string) string) string {
		value := payload[field]
		s, _ := value.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			errs = append(errs, common.FieldError{Field: field, Message: label + " is required", Value: value})
			return ""
		}
		if msg := extra(s); msg != "" {
			errs = append(errs, common.FieldError{Field: field, Message: msg, Value: value})
			return ""
		}
		return s
	}

	req.OrderID = check("orderId", "Order ID", func(s string) string {
		if !common.Var(s, "min=10") {
			return "Order ID must be at least 10 characters"
		}
		return ""
	})
	req.PaymentID = check("paymentId", "Payment ID", func(s string) string {
		if !common.Var(s, "startswith="+PaymentIDPrefix) {
			return fmt.Sprintf("Payment ID must start with %q", PaymentIDPrefix)
		}
		return ""
	})
	req.Signature = check("signature", "Signature", func(s string) string {
		if !common.Var(s, "min=64,max=128") {
			return "Signature must be between 64 and 128 characters"
		}
		return ""
	})
	return req, errs
}
