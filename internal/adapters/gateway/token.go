package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReturnTokenTTL bounds how long a payment return link stays valid.
const ReturnTokenTTL = 24 * time.Hour

const returnIssuer = "dojo/payments"

// ErrInvalidReturnToken is returned for forged, expired or malformed tokens.
var ErrInvalidReturnToken = errors.New("invalid payment return token")

// ReturnClaims identify the payment and the outcome a return URL reports.
type ReturnClaims struct {
	jwt.RegisteredClaims
	Outcome string `json:"outcome"`
}

// PaymentID returns the payment the token was issued for.
func (c ReturnClaims) PaymentID() string {
	return c.Subject
}

// ReturnSigner signs and verifies payment return tokens with HMAC-SHA256.
type ReturnSigner struct {
	secret []byte
	now    func() time.Time
}

// NewReturnSigner creates a signer.
// PRE: len(secret) >= 32
func NewReturnSigner(secret []byte, now func() time.Time) (*ReturnSigner, error) {
	if len(secret) < 32 {
		return nil, errors.New("payment token secret must be at least 32 bytes")
	}
	if now == nil {
		now = time.Now
	}
	return &ReturnSigner{secret: secret, now: now}, nil
}

// Sign returns a token for one payment outcome.
func (s *ReturnSigner) Sign(paymentID, outcome string) (string, error) {
	now := s.now().UTC()
	claims := ReturnClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   paymentID,
			Issuer:    returnIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ReturnTokenTTL)),
		},
		Outcome: outcome,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a token and checks signature, issuer and expiry.
func (s *ReturnSigner) Verify(token string) (ReturnClaims, error) {
	var claims ReturnClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(returnIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ReturnClaims{}, fmt.Errorf("%w: %v", ErrInvalidReturnToken, err)
	}
	if claims.Subject == "" || claims.Outcome == "" {
		return ReturnClaims{}, ErrInvalidReturnToken
	}
	return claims, nil
}
