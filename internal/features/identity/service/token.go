package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"support-relay-backend/internal/domain/chat"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "support-relay"

// Claims is the payload of a signed session token.
type Claims struct {
	Role chat.ActorKind `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies HS256 session tokens. Verification is a
// pure signature and expiry check.
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

func NewTokenSigner(secret string, now func() time.Time) *TokenSigner {
	if now == nil {
		now = time.Now
	}
	return &TokenSigner{secret: []byte(secret), now: now}
}

// Sign returns a token for p valid for ttl.
func (s *TokenSigner) Sign(p chat.Principal, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(ttl)
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(p.ActorID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature and expiry and returns the encoded principal.
func (s *TokenSigner) Verify(token string) (*Claims, chat.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, chat.Principal{}, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, chat.Principal{}, errors.New("invalid subject")
	}
	switch claims.Role {
	case chat.ActorGuest, chat.ActorTelegram, chat.ActorAdmin:
	default:
		return nil, chat.Principal{}, fmt.Errorf("invalid role %q", claims.Role)
	}
	return &claims, chat.Principal{ActorID: id, Role: claims.Role}, nil
}
