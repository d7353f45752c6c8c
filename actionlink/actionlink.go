// Package actionlink signs and verifies the tokens embedded in customer
// accept/reject links. A token binds one offer to one customer contact so
// the link in a reminder email authorizes exactly that offer's action and
// nothing else. This is not user authentication; it authenticates a single
// offer action.
package actionlink

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers expired, malformed, and wrongly-signed tokens.
var ErrInvalidToken = errors.New("actionlink: invalid token")

// Issuer signs and verifies offer action tokens with an HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("actionlink: empty signing secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("actionlink: non-positive ttl")
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the wall clock, for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue returns a signed token for the given offer and customer contact.
func (i *Issuer) Issue(offerID, contactID string) (string, error) {
	if offerID == "" || contactID == "" {
		return "", fmt.Errorf("actionlink: offer id and contact id required")
	}

	issuedAt := i.now()
	claims := jwt.MapClaims{
		"offer_id":   offerID,
		"contact_id": contactID,
		"iat":        issuedAt.Unix(),
		"exp":        issuedAt.Add(i.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("actionlink: sign token: %w", err)
	}
	return token, nil
}

// Verify checks signature and expiry and returns the bound offer and
// contact identifiers.
func (i *Issuer) Verify(tokenString string) (offerID, contactID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}

	offerID, ok = claims["offer_id"].(string)
	if !ok || offerID == "" {
		return "", "", ErrInvalidToken
	}
	contactID, ok = claims["contact_id"].(string)
	if !ok || contactID == "" {
		return "", "", ErrInvalidToken
	}
	return offerID, contactID, nil
}
