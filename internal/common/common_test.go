package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
)

func TestWriteErrorRendersAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, ValidationFailed([]FieldError{{Field: "amount", Message: "Amount is required"}}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body struct {
		Success bool         `json:"success"`
		Message string       `json:"message"`
		Errors  []FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "Validation failed", body.Message)
	require.Len(t, body.Errors, 1)
	require.Equal(t, "amount", body.Errors[0].Field)
}

func TestWriteErrorHidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, Unauthorized("Not authorized, token failed", errors.New("signature mismatch")))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.NotContains(t, rr.Body.String(), "signature mismatch")

	rr = httptest.NewRecorder()
	WriteError(rr, errors.New("db down"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "db down")
}

func TestVar(t *testing.T) {
	require.True(t, Var("pay_123", "startswith=pay_"))
	require.False(t, Var("ord_123", "startswith=pay_"))
	require.True(t, Var("INR", "oneof=INR USD"))
	require.False(t, Var("ab", "min=3,max=200"))
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idem := Idem{R: rdb, TTL: time.Minute}

	status := http.StatusInternalServerError
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/create-order", nil)
		req.Header.Set("Idempotency-Key", "abc")
		req = req.WithContext(WithPrincipal(req.Context(), identity.User{ID: "u1"}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusInternalServerError, do())
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, do())
	require.Equal(t, http.StatusConflict, do())
}

func TestPrincipalContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := PrincipalFrom(req.Context())
	require.False(t, ok)

	ctx := WithPrincipal(req.Context(), identity.Recycler{ID: "r1"})
	id, ok := UserID(ctx)
	require.True(t, ok)
	require.Equal(t, "r1", id)
}
