// Package auth issues and verifies HS256 access tokens.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the value of the "type" claim on access tokens.
const TokenTypeAccess = "access"

// DefaultAccessTTL is the lifetime of access tokens when none is configured.
const DefaultAccessTTL = 15 * time.Minute

var ErrSigningFailure = errors.New("token signing failed")

// Verification failures. All of them wrap common.ErrInvalidToken so callers
// can treat them uniformly while logs keep the precise reason.
var (
	ErrTokenExpired   = fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
	ErrTokenMalformed = fmt.Errorf("%w: malformed or bad signature", common.ErrInvalidToken)
	ErrWrongTokenType = fmt.Errorf("%w: wrong token type", common.ErrInvalidToken)
	ErrBadSubject     = fmt.Errorf("%w: bad subject", common.ErrInvalidToken)
)

// Claims are the access token claims: the standard set plus the token type.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// Signer issues and verifies access tokens with a single shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of s that reads time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}

func (s *Signer) TTL() time.Duration { return s.ttl }

// IssueAccessToken returns a signed token for userID valid for the signer's TTL.
func (s *Signer) IssueAccessToken(userID int64) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("%w: empty secret", ErrSigningFailure)
	}

	iat := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(s.ttl)),
		},
		Type: TokenTypeAccess,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, algorithm, expiry, token type and
// subject and returns the user id the token was issued for.
func (s *Signer) VerifyAccessToken(tokenString string) (int64, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w (%v)", ErrTokenMalformed, err)
	}
	if !token.Valid {
		return 0, ErrTokenMalformed
	}

	if claims.Type != TokenTypeAccess {
		return 0, ErrWrongTokenType
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadSubject
	}

	return id, nil
}
