package security

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// SessionClaims are the claims minted by the identity service.
type SessionClaims struct {
	Alias string `json:"alias,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator accepts RS256 tokens signed by the identity service.
// It only needs the public key; the private key is optional and enables Issue.
type JWTAuthenticator struct {
	publicKey  *rsa.PublicKey
	privateKey *rsa.PrivateKey
	clock      ports.Clock
	issuer     string
}

func NewJWTAuthenticator(publicKeyPEM []byte, clock ports.Clock) (*JWTAuthenticator, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &JWTAuthenticator{publicKey: pubKey, clock: clock, issuer: "cenackle-identity"}, nil
}

// WithSigningKey loads the private key so Issue can mint tokens.
func (j *JWTAuthenticator) WithSigningKey(privateKeyPEM []byte) error {
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	j.privateKey = privKey
	return nil
}

// Authenticate never fails with an error: a bad or expired token is just false.
func (j *JWTAuthenticator) Authenticate(_ context.Context, tokenString string) (bool, error) {
	if tokenString == "" {
		return false, nil
	}
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Seul RS256 est accepté (pas de "none" ni de HS256)
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.publicKey, nil
	},
		jwt.WithTimeFunc(j.clock.Now),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return false, nil
	}
	return token.Valid, nil
}

// Issue signs a token for alias valid for ttl.
func (j *JWTAuthenticator) Issue(alias string, ttl time.Duration) (string, error) {
	if j.privateKey == nil {
		return "", fmt.Errorf("no signing key loaded")
	}
	now := j.clock.Now()
	claims := SessionClaims{
		Alias: alias,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   alias,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
}
