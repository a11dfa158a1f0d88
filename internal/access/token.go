// Package access issues and verifies stateless download tokens and decides
// which actors may see a document.
package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

var (
	ErrTokenExpired     = errors.New("download token expired")
	ErrInvalidSignature = errors.New("download token signature is invalid")
	ErrTokenMismatch    = errors.New("download token was issued for another document")
)

// TokenTTL is fixed; tokens are not renewable.
const TokenTTL = 2 * time.Hour

// InsecureDevSecret is used outside production when no secret is configured.
const InsecureDevSecret = "docgen-insecure-development-secret"

// Claims are carried by a download token.
type Claims struct {
	DocumentID string `json:"doc"`
	ActorID    string `json:"act"`
	jwt.RegisteredClaims
}

// Signer issues HS256 download tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	if secret == "" {
		logrus.Warn("no document token secret configured, using the insecure development secret")
		secret = InsecureDevSecret
	}

	return &Signer{secret: []byte(secret), ttl: TokenTTL, now: time.Now}
}

// Issue returns a token for documentID bound to actorID and its expiry.
func (s *Signer) Issue(documentID, actorID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl).Truncate(time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DocumentID: documentID,
		ActorID:    actorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks the signature and then the expiry of raw. A correctly signed
// token past its expiry yields ErrTokenExpired; anything else that fails yields
// ErrInvalidSignature.
func (s *Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		// the parser verifies the signature before any claim, so an expiry
		// error implies the signature held
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if claims.DocumentID == "" {
		return nil, ErrInvalidSignature
	}

	return claims, nil
}

// VerifyFor verifies raw and checks it was issued for documentID.
func (s *Signer) VerifyFor(raw, documentID string) (*Claims, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.DocumentID != documentID {
		return nil, ErrTokenMismatch
	}

	return claims, nil
}
