package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
)

type failingStore struct{ identity.Store }

func (failingStore) FindByID(context.Context, identity.Role, string) (identity.Principal, error) {
	return nil, errors.New("mongo: connection refused")
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := common.PrincipalFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		common.JSON(w, http.StatusOK, map[string]string{"id": p.Subject(), "role": p.Role().String()})
	})
}

func serve(h http.Handler, header string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	return rr, body
}

func TestProtectRejections(t *testing.T) {
	svc, store := newTestService(t)
	m := Middleware{Service: svc, LookupTimeout: time.Second}
	h := m.Protect(echoPrincipal())

	store.Put(identity.User{ID: "u1"}, "u1@example.com", "")
	valid, _, err := svc.GenerateToken("u1", identity.RoleUser)
	require.NoError(t, err)
	orphan, _, err := svc.GenerateToken("deleted-user", identity.RoleUser)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		msg    string
	}{
		{"no header", "", MsgNoToken},
		{"basic scheme", "Basic dXNlcjpwYXNz", MsgNoToken},
		{"empty bearer", "Bearer   ", MsgNoToken},
		{"garbage token", "Bearer abc.def.ghi", MsgTokenFailed},
		{"tampered token", "Bearer " + valid + "x", MsgTokenFailed},
		{"deleted principal", "Bearer " + orphan, MsgTokenFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, body := serve(h, tc.header)
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.Equal(t, false, body["success"])
			require.Equal(t, tc.msg, body["message"])
		})
	}
}

func TestProtectAttachesPrincipal(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(identity.Recycler{ID: "r1", CompanyName: "Green Loop"}, "r1@example.com", "")
	token, _, err := svc.GenerateToken("r1", identity.RoleRecycler)
	require.NoError(t, err)

	rr, body := serve(Middleware{Service: svc}.Protect(echoPrincipal()), "bearer "+token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "r1", body["id"])
	require.Equal(t, "recycler", body["role"])
}

func TestProtectStoreFailureIsUniform(t *testing.T) {
	store := failingStore{}
	svc, err := NewService(Config{Store: store, Secret: testSecret})
	require.NoError(t, err)
	token, _, err := svc.GenerateToken("u1", identity.RoleUser)
	require.NoError(t, err)

	rr, body := serve(Middleware{Service: svc}.Protect(echoPrincipal()), "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, MsgTokenFailed, body["message"])
	require.NotContains(t, rr.Body.String(), "mongo")
}

func TestAdminGate(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(identity.User{ID: "plain"}, "plain@example.com", "")
	store.Put(identity.User{ID: "boss", Admin: true}, "boss@example.com", "")
	m := Middleware{Service: svc}
	h := m.Protect(m.Admin(echoPrincipal()))

	plain, _, _ := svc.GenerateToken("plain", identity.RoleUser)
	rr, body := serve(h, "Bearer "+plain)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, MsgNotAdmin, body["message"])

	boss, _, _ := svc.GenerateToken("boss", identity.RoleUser)
	rr, _ = serve(h, "Bearer "+boss)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body = serve(m.Admin(echoPrincipal()), "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, MsgNoToken, body["message"])
}

func TestRequireRole(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(identity.Recycler{ID: "r1"}, "r1@example.com", "")
	m := Middleware{Service: svc}
	h := m.Protect(m.RequireRole(identity.RoleUser)(echoPrincipal()))

	token, _, _ := svc.GenerateToken("r1", identity.RoleRecycler)
	rr, _ := serve(h, "Bearer "+token)
	require.Equal(t, http.StatusForbidden, rr.Code)
}
