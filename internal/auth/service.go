package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
)

const (
	// DefaultTokenTTL is the session lifetime. There is no revocation; expiry
	// is the only bound on a leaked token.
	DefaultTokenTTL = 30 * 24 * time.Hour

	roleClaim = "role"
)

// Service issues and verifies session tokens and manages credentials.
type Service struct {
	store     identity.Store
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	clockSkew time.Duration
}

// Config configures the auth service.
type Config struct {
	Store     identity.Store
	Secret    string
	TokenTTL  time.Duration
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Claims are the verified contents of a session token.
type Claims struct {
	Subject   string
	Role      identity.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is returned after a successful login or registration.
type Session struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Principal identity.Principal `json:"user"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: identity store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "recycle-it"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "recycle-it-clients"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Service{
		store:  cfg.Store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		signer: jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GenerateToken signs an HS256 token for subject carrying its role.
func (s *Service) GenerateToken(subject string, role identity.Role) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	if _, err := identity.ParseRole(string(role)); err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(roleClaim, string(role)).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// ParseToken verifies signature, algorithm and time claims. Every failure
// wraps ErrInvalidToken.
func (s *Service) ParseToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, ErrNoToken
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return Claims{}, fmt.Errorf("%w: unexpected token algorithm %s", ErrInvalidToken, algorithm)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	rawRole, ok := parsed.Get(roleClaim)
	if !ok {
		return Claims{}, fmt.Errorf("%w: role claim missing", ErrInvalidToken)
	}
	roleStr, _ := rawRole.(string)
	role, err := identity.ParseRole(roleStr)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(parsed.Subject()) == "" {
		return Claims{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return Claims{
		Subject:   parsed.Subject(),
		Role:      role,
		IssuedAt:  parsed.IssuedAt(),
		ExpiresAt: parsed.Expiration(),
	}, nil
}

// Resolve verifies token and loads the principal it names. Lookup failures
// other than not-found are returned unwrapped so callers can log them.
func (s *Service) Resolve(ctx context.Context, token string) (identity.Principal, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}
	p, err := s.store.FindByID(ctx, claims.Role, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrPrincipalNotFound, claims.Role, claims.Subject)
		}
		return nil, fmt.Errorf("resolve %s %s: %w", claims.Role, claims.Subject, err)
	}
	return p, nil
}

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	CompanyName string `json:"companyName"`
}

func (in RegisterInput) validate(role identity.Role) []common.FieldError {
	var errs []common.FieldError
	if !common.Var(strings.TrimSpace(in.Name), "required,min=2,max=100") {
		errs = append(errs, common.FieldError{Field: "name", Message: "Name must be between 2 and 100 characters", Value: in.Name})
	}
	if !common.Var(identity.NormalizeEmail(in.Email), "required,email") {
		errs = append(errs, common.FieldError{Field: "email", Message: "A valid email is required", Value: in.Email})
	}
	if !common.Var(in.Password, "required,min=8,max=128") {
		errs = append(errs, common.FieldError{Field: "password", Message: "Password must be at least 8 characters"})
	}
	if !common.Var(strings.TrimSpace(in.Phone), "omitempty,min=10,max=15") {
		errs = append(errs, common.FieldError{Field: "phone", Message: "Phone must be between 10 and 15 characters", Value: in.Phone})
	}
	if role == identity.RoleRecycler && !common.Var(strings.TrimSpace(in.CompanyName), "required,max=200") {
		errs = append(errs, common.FieldError{Field: "companyName", Message: "Company name is required", Value: in.CompanyName})
	}
	return errs
}

// Register creates a principal of role and signs its first session.
func (s *Service) Register(ctx context.Context, role identity.Role, in RegisterInput) (Session, error) {
	if errs := in.validate(role); len(errs) > 0 {
		return Session{}, common.ValidationFailed(errs)
	}
	hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	p, err := s.store.Create(ctx, role, identity.NewAccount{
		Name:         strings.TrimSpace(in.Name),
		Email:        identity.NormalizeEmail(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		CompanyName:  strings.TrimSpace(in.CompanyName),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateEmail) {
			return Session{}, common.NewAppError("EMAIL_ALREADY_USED", "Email is already registered", http.StatusConflict, err)
		}
		return Session{}, fmt.Errorf("create %s: %w", role, err)
	}
	return s.session(p)
}

var errInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized, nil)

// Login checks credentials and signs a session.
func (s *Service) Login(ctx context.Context, role identity.Role, email, password string) (Session, error) {
	if identity.NormalizeEmail(email) == "" || password == "" {
		return Session{}, errInvalidCredentials
	}
	creds, err := s.store.FindCredentials(ctx, role, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Session{}, errInvalidCredentials
		}
		return Session{}, fmt.Errorf("find credentials: %w", err)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, creds.PasswordHash)
	if err != nil || !ok {
		return Session{}, errInvalidCredentials
	}
	return s.session(creds.Principal)
}

func (s *Service) session(p identity.Principal) (Session, error) {
	token, expiresAt, err := s.GenerateToken(p.Subject(), p.Role())
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, Principal: p}, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
