package tokens

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrConfiguration  = errors.New("token service is not configured")
	ErrInvalidAccount = errors.New("account is required to issue a token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrMalformedToken = errors.New("token is invalid")
)

type Config struct {
	SigningKey      []byte
	Issuer          string
	Audience        string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

type Service struct {
	cfg Config
	now func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for issuing and for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) checkBase() error {
	switch {
	case len(s.cfg.SigningKey) == 0:
		return fmt.Errorf("%w: missing signing key", ErrConfiguration)
	case s.cfg.Issuer == "":
		return fmt.Errorf("%w: missing issuer", ErrConfiguration)
	case s.cfg.Audience == "":
		return fmt.Errorf("%w: missing audience", ErrConfiguration)
	}
	return nil
}

func (s *Service) registered(accountID uint, lifetime time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(accountID), 10),
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		ID:        uuid.NewString(),
	}
}

func (s *Service) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}

func (s *Service) IssueAccessToken(id *Identity) (string, error) {
	if err := s.checkBase(); err != nil {
		return "", err
	}
	if s.cfg.AccessLifetime <= 0 {
		return "", fmt.Errorf("%w: missing access token lifetime", ErrConfiguration)
	}
	if id == nil {
		return "", ErrInvalidAccount
	}

	return s.sign(Claims{
		Email:            id.Email,
		Role:             id.Role,
		Type:             TypeAccess,
		RegisteredClaims: s.registered(id.ID, s.cfg.AccessLifetime),
	})
}

func (s *Service) IssueRefreshToken(id *Identity, rememberMe bool) (string, error) {
	if err := s.checkBase(); err != nil {
		return "", err
	}
	if s.cfg.RefreshLifetime <= 0 {
		return "", fmt.Errorf("%w: missing refresh token lifetime", ErrConfiguration)
	}
	if id == nil {
		return "", ErrInvalidAccount
	}

	return s.sign(Claims{
		RememberMe:       rememberMe,
		Type:             TypeRefresh,
		RegisteredClaims: s.registered(id.ID, s.cfg.RefreshLifetime),
	})
}

func (s *Service) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, errors.New("unexpected sign method")
	}
	return s.cfg.SigningKey, nil
}

func (s *Service) parse(token string, checkExpiry bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if checkExpiry {
		opts = append(opts,
			jwt.WithIssuer(s.cfg.Issuer),
			jwt.WithAudience(s.cfg.Audience),
			jwt.WithExpirationRequired(),
		)
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, s.keyFunc, opts...)
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("token not valid")
	}

	// claims validation was skipped, issuer and audience still have to match
	if !checkExpiry {
		if claims.Issuer != s.cfg.Issuer {
			return nil, jwt.ErrTokenInvalidIssuer
		}
		if !slices.Contains(claims.Audience, s.cfg.Audience) {
			return nil, jwt.ErrTokenInvalidAudience
		}
	}
	return &claims, nil
}

// Validate verifies signature, algorithm, issuer and audience. With checkExpiry
// it also rejects tokens past exp, returning ErrExpiredToken only when expiry
// is the sole problem.
func (s *Service) Validate(token string, checkExpiry bool) (*Claims, error) {
	if err := s.checkBase(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	claims, err := s.parse(token, checkExpiry)
	if err == nil {
		return claims, nil
	}

	if checkExpiry && errors.Is(err, jwt.ErrTokenExpired) {
		if _, relaxedErr := s.parse(token, false); relaxedErr == nil {
			return nil, ErrExpiredToken
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
}

// ReadExpiry decodes exp without checking the signature. Diagnostics and
// cookie lifetimes only, never authorization.
func (s *Service) ReadExpiry(token string) (time.Time, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: no exp claim", ErrMalformedToken)
	}
	return claims.ExpiresAt.Time, nil
}
