package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
)

// Handler exposes HTTP endpoints for payment orders.
type Handler struct {
	Svc *Service
}

type createOrderResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		OrderID  string `json:"orderId"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		KeyID    string `json:"keyId"`
	} `json:"data"`
}

// CreateOrder must be mounted behind Protect and OrderGuard.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "Payment handler unavailable", nil)
		return
	}
	req, ok := OrderRequestFrom(r.Context())
	if !ok {
		common.WriteError(w, common.ValidationFailed(nil))
		return
	}
	p, _ := common.PrincipalFrom(r.Context())
	res, err := h.Svc.CreateOrder(r.Context(), p, req)
	if err != nil {
		logFailure(r, err, "create payment order failed")
		common.WriteError(w, err)
		return
	}
	var resp createOrderResp
	resp.Success = true
	resp.Message = "Payment order created"
	resp.Data.OrderID = res.Order.ProviderOrderID
	resp.Data.Amount = res.Order.Amount
	resp.Data.Currency = res.Order.Currency
	resp.Data.Receipt = res.Order.Receipt
	resp.Data.KeyID = res.KeyID
	common.JSON(w, http.StatusCreated, resp)
}

// VerifyPayment must be mounted behind Protect and VerifyGuard.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "Payment handler unavailable", nil)
		return
	}
	req, ok := VerifyRequestFrom(r.Context())
	if !ok {
		common.WriteError(w, common.ValidationFailed(nil))
		return
	}
	p, _ := common.PrincipalFrom(r.Context())
	res, err := h.Svc.VerifyPayment(r.Context(), p, req)
	if err != nil {
		logFailure(r, err, "verify payment failed")
		common.WriteError(w, err)
		return
	}
	msg := "Payment verified successfully"
	if res.AlreadyVerified {
		msg = "Payment already verified"
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
		"data":    res.Order,
	})
}

// Get returns one order for its owner or an administrator.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := common.PrincipalFrom(r.Context())
	order, err := h.Svc.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		logFailure(r, err, "get payment order failed")
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "data": order})
}

// List returns recent orders; mount behind Admin.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	orders, total, err := h.Svc.ListRecent(r.Context(), page, perPage)
	if err != nil {
		logFailure(r, err, "list payment orders failed")
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}
