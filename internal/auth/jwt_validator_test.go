package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, iat, nbf, exp time.Time) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"recycle-it-clients"}).
		Subject("64f1c2a9e4b0a1b2c3d4e5f6").
		IssuedAt(iat).
		NotBefore(nbf)
	if !exp.IsZero() {
		b = b.Expiration(exp)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func testValidator() TokenValidator {
	return TokenValidator{Issuer: "recycle-it", Audience: "recycle-it-clients", ClockSkew: time.Second, Algorithm: jwa.HS256}
}

func TestTokenValidatorAcceptsFreshToken(t *testing.T) {
	now := time.Now()
	tok := buildToken(t, "recycle-it", now, now, now.Add(time.Minute))
	require.NoError(t, testValidator().Validate(tok, jwa.HS256, now))
}

func TestTokenValidatorRejects(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		tok jwt.Token
		alg jwa.SignatureAlgorithm
	}{
		"issuer mismatch": {buildToken(t, "someone-else", now, now, now.Add(time.Minute)), jwa.HS256},
		"expired":         {buildToken(t, "recycle-it", now.Add(-2*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Minute)), jwa.HS256},
		"not yet valid":   {buildToken(t, "recycle-it", now, now.Add(5*time.Minute), now.Add(10*time.Minute)), jwa.HS256},
		"no expiry":       {buildToken(t, "recycle-it", now, now, time.Time{}), jwa.HS256},
		"wrong algorithm": {buildToken(t, "recycle-it", now, now, now.Add(time.Minute)), jwa.RS256},
		"no algorithm":    {buildToken(t, "recycle-it", now, now, now.Add(time.Minute)), ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, testValidator().Validate(tc.tok, tc.alg, now))
		})
	}
}
