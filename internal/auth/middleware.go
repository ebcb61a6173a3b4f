package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/obs"
)

// Middleware gates HTTP handlers on a verified session token.
type Middleware struct {
	Service *Service
	// LookupTimeout bounds the identity lookup; zero uses the request deadline only.
	LookupTimeout time.Duration
}

// Protect requires a bearer token that resolves to a live principal and
// attaches that principal to the request context.
func (m Middleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.authenticate(r)
		if err != nil {
			reject(w, r, err)
			return
		}
		ctx := common.WithPrincipal(r.Context(), p)
		obs.AnnotatePrincipal(ctx, p.Subject(), p.Role().String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Admin must run after Protect and lets only principals carrying the admin flag through.
func (m Middleware) Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := common.PrincipalFrom(r.Context())
		if !ok {
			reject(w, r, ErrNoToken)
			return
		}
		if !p.IsAdministrator() {
			reject(w, r, ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole must run after Protect and admits only the listed principal kinds.
func (m Middleware) RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := make(map[identity.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := common.PrincipalFrom(r.Context())
			if !ok {
				reject(w, r, ErrNoToken)
				return
			}
			if _, ok := allowed[p.Role()]; !ok {
				common.JSONError(w, http.StatusForbidden, common.CodeForbidden, "Not allowed for this account type", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) authenticate(r *http.Request) (identity.Principal, error) {
	if m.Service == nil {
		return nil, errors.New("auth: service not configured")
	}
	token, ok := bearerToken(r)
	if !ok {
		return nil, ErrNoToken
	}
	ctx := r.Context()
	if m.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.LookupTimeout)
		defer cancel()
	}
	return m.Service.Resolve(ctx, token)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func reject(w http.ResponseWriter, r *http.Request, err error) {
	cause := reason(err)
	obs.RecordAuthFailure(cause)
	evt := zerolog.Ctx(r.Context()).Warn()
	if cause == "lookup_error" {
		evt = zerolog.Ctx(r.Context()).Error()
	}
	evt.Err(err).Str("reason", cause).Msg("request not authorized")
	common.WriteError(w, unauthorized(err))
}
