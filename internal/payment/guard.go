package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/obs"
)

var errBodyNotObject = errors.New("request body must be a JSON object")

// decodePayload reads the request body into a generic map and restores it for
// downstream handlers. Numbers are kept as json.Number.
func decodePayload(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, errBodyNotObject
	}
	return payload, nil
}

func rejectValidation(w http.ResponseWriter, r *http.Request, guard string, errs []common.FieldError) {
	obs.RecordValidationFailure(guard)
	zerolog.Ctx(r.Context()).Debug().Str("guard", guard).Int("violations", len(errs)).Msg("request rejected by validation")
	common.WriteError(w, common.ValidationFailed(errs))
}

func bodyError(w http.ResponseWriter, r *http.Request, guard string, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
		return
	}
	rejectValidation(w, r, guard, []common.FieldError{{Field: "body", Message: "Request body must be a JSON object"}})
}

// OrderGuard validates an order-creation payload and attaches the parsed
// OrderRequest to the request context.
func OrderGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := decodePayload(r)
		if err != nil {
			bodyError(w, r, "create_order", err)
			return
		}
		req, errs := ValidateOrder(payload)
		if len(errs) > 0 {
			rejectValidation(w, r, "create_order", errs)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOrderRequest(r.Context(), req)))
	})
}

// VerifyGuard validates the shape of a payment verification payload and
// attaches the parsed VerifyRequest to the request context.
func VerifyGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := decodePayload(r)
		if err != nil {
			bodyError(w, r, "verify_payment", err)
			return
		}
		req, errs := ValidateVerification(payload)
		if len(errs) > 0 {
			rejectValidation(w, r, "verify_payment", errs)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithVerifyRequest(r.Context(), req)))
	})
}

// SignatureHeader carries the Razorpay webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

// RequireWebhookSignature rejects webhook calls without a signature header.
// The header value is attached to the context unchanged.
func RequireWebhookSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig := r.Header.Get(SignatureHeader)
		if sig == "" {
			obs.RecordPaymentWebhook("unknown", "signature_missing")
			common.WriteError(w, common.WebhookSignatureMissing())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithWebhookSignature(r.Context(), sig)))
	})
}
