package common

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	redis "github.com/redis/go-redis/v9"
)

const idempotencyHeader = "Idempotency-Key"

// Idem provides an Idempotency-Key middleware backed by Redis.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// idemKey scopes the client key by principal and route so two callers cannot collide.
func idemKey(r *http.Request, header string) string {
	subject, _ := UserID(r.Context())
	return "idem:" + Sha256Hex(subject+"|"+r.Method+"|"+r.URL.Path+"|"+header)
}

type idemRecorder struct {
	http.ResponseWriter
	status int
}

func (w *idemRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *idemRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Middleware enforces idempotency semantics for write endpoints. A key is held
// only when the wrapped handler succeeds; failed attempts may be retried.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(idempotencyHeader)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := idemKey(r, header)
		ok, err := i.R.SetNX(ctx, key, "locked", i.TTL).Result()
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("idempotency store unavailable")
			JSONError(w, http.StatusInternalServerError, CodeInternal, "Idempotency store error", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "Duplicate request", nil)
			return
		}
		rec := &idemRecorder{ResponseWriter: w}
		defer func() {
			if rec.status < 200 || rec.status >= 300 {
				_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
			}
		}()
		next.ServeHTTP(rec, r)
	})
}
