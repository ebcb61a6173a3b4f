package ratelimit

import (
	"net/http"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
)

// KeyFunc derives the bucket a request counts against. An empty key skips limiting.
type KeyFunc func(*http.Request) string

// ByClientIP buckets requests per scope and client address.
func ByClientIP(scope string) KeyFunc {
	return func(r *http.Request) string {
		return scope + ":ip:" + common.ClientIP(r)
	}
}

// ByPrincipal buckets authenticated requests per scope and principal,
// falling back to the client address before authentication has run.
func ByPrincipal(scope string) KeyFunc {
	return func(r *http.Request) string {
		if p, ok := common.PrincipalFrom(r.Context()); ok {
			return scope + ":" + p.Role().String() + ":" + p.Subject()
		}
		return scope + ":ip:" + common.ClientIP(r)
	}
}
