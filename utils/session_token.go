package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload carried by a session token. The token alone
// never authenticates a request: the SessionID must still be present in the
// session store, so ending a session kills every copy of the token.
type SessionClaims struct {
	UserID    uint   `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SignSessionToken issues an HS256 token binding userID to sessionID.
func SignSessionToken(secret string, userID uint, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionToken verifies signature and expiry and returns the claims.
func ParseSessionToken(secret, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
