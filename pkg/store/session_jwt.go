package store

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer   = "openjournal"
	defaultJWTAudience = "openjournal-api"
)

var defaultJWTLeeway = 30 * time.Second

// JWTSessionStore issues and validates HS256 session tokens. Logout is
// implemented through the revoker, which holds tokens until they expire
// on their own.
type JWTSessionStore struct {
	secret   []byte
	ttl      time.Duration
	revoker  TokenRevoker
	issuer   string
	audience string
	leeway   time.Duration
}

// NewJWTSessionStore builds an HS256 JWT session store. A nil revoker
// falls back to an in-memory one.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker) (*JWTSessionStore, error) {
	if secret == "" {
		return nil, errors.New("jwt session secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if revoker == nil {
		revoker = NewMemoryTokenRevoker()
	}
	return &JWTSessionStore{
		secret:   []byte(secret),
		ttl:      ttl,
		revoker:  revoker,
		issuer:   defaultJWTIssuer,
		audience: defaultJWTAudience,
		leeway:   defaultJWTLeeway,
	}, nil
}

// NewSession signs a token carrying the user id as subject.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// GetUserIDByToken validates the token and returns its subject.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	revoked, err := s.revoker.IsRevoked(token)
	if err != nil {
		return "", false, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return "", false, nil
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", false, nil
	}
	if claims.Subject == "" {
		return "", false, nil
	}
	return claims.Subject, true, nil
}

// DeleteSession revokes the token for its remaining lifetime.
func (s *JWTSessionStore) DeleteSession(token string) error {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil || !parsed.Valid || claims.ExpiresAt == nil {
		// Invalid or already expired tokens need no revocation entry.
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	return s.revoker.Revoke(token, remaining)
}
