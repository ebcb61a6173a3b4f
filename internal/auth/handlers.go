package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
)

// WelcomeSender schedules the welcome email for a new account.
type WelcomeSender interface {
	EnqueueWelcome(ctx context.Context, role identity.Role, id string) error
}

// Handler exposes HTTP handlers for authentication and account endpoints.
type Handler struct {
	Service *Service
	Welcome WelcomeSender
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Token     string             `json:"token"`
	ExpiresAt string             `json:"expiresAt"`
	User      identity.Principal `json:"user"`
}

func roleParam(w http.ResponseWriter, r *http.Request) (identity.Role, bool) {
	role, err := identity.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "Unknown account type", nil)
		return "", false
	}
	return role, true
}

func writeSession(w http.ResponseWriter, status int, msg string, s Session) {
	common.JSON(w, status, sessionResponse{
		Success:   true,
		Message:   msg,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		User:      s.Principal,
	})
}

// Register handles POST /api/auth/{role}/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "Auth service not configured", nil)
		return
	}
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.ValidationFailed([]common.FieldError{{Field: "body", Message: "Request body must be a JSON object"}}))
		return
	}
	session, err := h.Service.Register(r.Context(), role, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.Welcome != nil {
		if err := h.Welcome.EnqueueWelcome(r.Context(), role, session.Principal.Subject()); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("user_id", session.Principal.Subject()).Msg("enqueue welcome email failed")
		}
	}
	writeSession(w, http.StatusCreated, "Registration successful", session)
}

// Login handles POST /api/auth/{role}/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "Auth service not configured", nil)
		return
	}
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.ValidationFailed([]common.FieldError{{Field: "body", Message: "Request body must be a JSON object"}}))
		return
	}
	session, err := h.Service.Login(r.Context(), role, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, "Login successful", session)
}

// Me returns the principal resolved by Protect.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := common.PrincipalFrom(r.Context())
	if !ok {
		common.WriteError(w, unauthorized(ErrNoToken))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"role":    p.Role(),
		"user":    p,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("auth request failed")
	}
	common.WriteError(w, err)
}
