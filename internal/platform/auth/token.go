package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultRoleClaim  = "role"
	defaultTokenTTL   = 24 * time.Hour
	minimumSecretSize = 16
)

var (
	// ErrTokenExpired signals that the bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the bearer token failed verification for any other reason.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the payload of storefront session tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  any    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// HMACTokens signs and verifies HS256 session tokens with a shared secret.
type HMACTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises HMACTokens.
type TokenOption func(*HMACTokens)

// WithTokenTTL overrides how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *HMACTokens) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithTokenClock overrides the clock used when issuing tokens.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *HMACTokens) {
		if now != nil {
			t.now = now
		}
	}
}

// NewHMACTokens constructs a signer/verifier. The issuer is required on every verified token.
func NewHMACTokens(secret, issuer string, opts ...TokenOption) (*HMACTokens, error) {
	if len(secret) < minimumSecretSize {
		return nil, fmt.Errorf("auth: signing secret must be at least %d bytes", minimumSecretSize)
	}
	t := &HMACTokens{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Issue signs a token for identity.
func (t *HMACTokens) Issue(identity Identity) (string, error) {
	if strings.TrimSpace(identity.UID) == "" {
		return "", errors.New("auth: identity uid is required")
	}
	now := t.now().UTC()
	claims := Claims{
		Email: identity.Email,
		Name:  identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	if len(identity.Roles) > 0 {
		claims.Role = identity.Roles
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses tokenStr and returns the identity it carries.
func (t *HMACTokens) Verify(_ context.Context, tokenStr string) (*Identity, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}); err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	return &Identity{
		UID:   claims.Subject,
		Email: strings.TrimSpace(claims.Email),
		Name:  strings.TrimSpace(claims.Name),
		Roles: rolesFromClaim(claims.Role),
	}, nil
}

func rolesFromClaim(raw any) []string {
	switch v := raw.(type) {
	case string:
		if role := normaliseRole(v); role != "" {
			return []string{role}
		}
		return nil
	case []any:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			role := normaliseRole(str)
			if role == "" {
				continue
			}
			if _, exists := seen[role]; exists {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
		return out
	case []string:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		return rolesFromClaim(items)
	default:
		return nil
	}
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
