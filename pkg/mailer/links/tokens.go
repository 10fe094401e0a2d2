package links

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSecret = errors.New("links: token secret is required")
	ErrInvalidToken  = errors.New("links: invalid token")
)

// TokenConfig configures signed link tokens.
type TokenConfig struct {
	Secret string        `env:"MAILER_TOKEN_SECRET"`
	Issuer string        `env:"MAILER_TOKEN_ISSUER" envDefault:"emailkit"`
	TTL    time.Duration `env:"MAILER_TOKEN_TTL" envDefault:"24h"`
}

// Claims are the claims of a link token.
type Claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// Tokens signs and verifies HS256 link tokens.
type Tokens struct {
	now    func() time.Time
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokens creates a token signer.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Tokens{
		now:    time.Now,
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
	}, nil
}

// Generate signs a token for subject, bound to purpose.
func (t *Tokens) Generate(subject, purpose string) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("links: failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and checks its signature, expiry, issuer and purpose.
func (t *Tokens) Verify(token, purpose string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", ErrInvalidToken)
	}
	return claims, nil
}
