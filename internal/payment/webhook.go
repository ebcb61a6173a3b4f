package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
)

// Webhook handles gateway callbacks. Mount it behind RequireWebhookSignature
// and a body limit.
type Webhook struct {
	Svc *Service
}

// Handle reads the raw body and hands it to the service for verification.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "Webhook unavailable", nil)
		return
	}
	sig, ok := WebhookSignatureFrom(r.Context())
	if !ok {
		common.WriteError(w, common.WebhookSignatureMissing())
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "Unable to read payload", nil)
		return
	}
	res, err := h.Svc.HandleWebhook(r.Context(), body, sig)
	if err != nil {
		logFailure(r, err, "webhook rejected")
		common.WriteError(w, err)
		return
	}
	msg := "Webhook processed"
	if res.Duplicate {
		msg = "Duplicate webhook ignored"
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
		"event":   res.Event,
		"action":  res.Action,
	})
}

func logFailure(r *http.Request, err error, msg string) {
	logger := zerolog.Ctx(r.Context())
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		logger.Warn().Err(err).Str("code", appErr.Code).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
