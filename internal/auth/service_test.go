package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
)

const testSecret = "test-secret-with-enough-entropy-0123456789"

func newTestService(t *testing.T) (*Service, *identity.MemoryStore) {
	t.Helper()
	store := identity.NewMemoryStore()
	svc, err := NewService(Config{Store: store, Secret: testSecret})
	require.NoError(t, err)
	return svc, store
}

func TestGenerateTokenCarriesRoleAndThirtyDayExpiry(t *testing.T) {
	svc, _ := newTestService(t)
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return issued })

	token, exp, err := svc.GenerateToken("user-1", identity.RoleRecycler)
	require.NoError(t, err)
	require.Equal(t, issued.Add(30*24*time.Hour), exp)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, identity.RoleRecycler, claims.Role)
	require.True(t, claims.ExpiresAt.Equal(exp))
	require.True(t, claims.IssuedAt.Equal(issued))
}

func TestParseTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestService(t)
	issued := time.Now().Add(-31 * 24 * time.Hour)
	svc.WithNow(func() time.Time { return issued })
	token, _, err := svc.GenerateToken("user-1", identity.RoleUser)
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	svc, _ := newTestService(t)
	other, err := NewService(Config{Store: identity.NewMemoryStore(), Secret: "another-secret"})
	require.NoError(t, err)
	token, _, err := other.GenerateToken("user-1", identity.RoleUser)
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsMissingRole(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject("user-1").
		Issuer("recycle-it").
		Audience([]string{"recycle-it-clients"}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)

	_, err = svc.ParseToken(string(signed))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ParseToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseToken("   ")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, identity.RoleUser, RegisterInput{
		Name:     "Asha Patil",
		Email:    "Asha@Example.com",
		Password: "correct-horse",
		Phone:    "9876543210",
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, identity.RoleUser, session.Principal.Role())

	resolved, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.Principal.Subject(), resolved.Subject())

	_, err = svc.Register(ctx, identity.RoleUser, RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "another-pass"})
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	login, err := svc.Login(ctx, identity.RoleUser, "asha@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, session.Principal.Subject(), login.Principal.Subject())

	_, err = svc.Login(ctx, identity.RoleUser, "asha@example.com", "wrong-password")
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)

	_, err = svc.Login(ctx, identity.RoleRecycler, "asha@example.com", "correct-horse")
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), identity.RoleRecycler, RegisterInput{
		Name:     "G",
		Email:    "not-an-email",
		Password: "short",
	})
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	fields := map[string]bool{}
	for _, fe := range appErr.Details.([]common.FieldError) {
		fields[fe.Field] = true
	}
	require.Equal(t, map[string]bool{"name": true, "email": true, "password": true, "companyName": true}, fields)
}

func TestResolveDeletedPrincipal(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(identity.User{ID: "gone"}, "gone@example.com", "")
	token, _, err := svc.GenerateToken("gone", identity.RoleUser)
	require.NoError(t, err)
	store.Delete(identity.RoleUser, "gone")

	_, err = svc.Resolve(context.Background(), token)
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}
