// Package auth mints and verifies the signed session tokens that carry a
// logged-in user's identity between requests. Tokens are stateless: the
// server keeps no session records, so verification is pure signature and
// expiry math against the process-wide secret.
package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the expiry window applied when none is configured.
const DefaultSessionTTL = 24 * time.Hour

var (
	// ErrTokenExpired marks a structurally valid, correctly signed token
	// whose expiry has passed.
	ErrTokenExpired = errors.New("session expired")

	// ErrTokenInvalidSignature marks a token whose signature does not
	// verify under the configured secret.
	ErrTokenInvalidSignature = errors.New("invalid token signature")

	// ErrTokenMalformed marks input that does not parse as a token at all,
	// or parses without a usable subject.
	ErrTokenMalformed = errors.New("malformed token")
)

// Issuer mints and verifies session tokens. The signing secret is loaded
// once at startup; changing it invalidates every outstanding session.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured expiry window.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints an HS256-signed token bound to the given user identifier,
// carrying issued-at and expiry claims.
func (i *Issuer) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks the token's signature and expiry and returns the user
// identifier it is bound to. Failures are classified as ErrTokenExpired,
// ErrTokenInvalidSignature, or ErrTokenMalformed.
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalidSignature
		}
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrTokenInvalidSignature):
			return "", ErrTokenInvalidSignature
		default:
			// The parser decodes the claims segment before checking the
			// HMAC, so a tampered payload that no longer decodes surfaces
			// here rather than as a signature failure. Check the signature
			// directly before settling on malformed.
			if sigErr := i.checkSignature(tokenString); sigErr != nil {
				return "", sigErr
			}
			return "", ErrTokenMalformed
		}
	}
	if !token.Valid {
		return "", ErrTokenMalformed
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrTokenMalformed
	}
	return subject, nil
}

// checkSignature verifies the HMAC of a token-shaped input without parsing
// the claims. It returns ErrTokenInvalidSignature when the input has three
// segments with a decodable signature that does not verify, and nil when no
// signature judgement can be made.
func (i *Issuer) checkSignature(tokenString string) error {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, i.secret); err != nil {
		return ErrTokenInvalidSignature
	}
	return nil
}
