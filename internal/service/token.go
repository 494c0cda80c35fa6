package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims identify the user and the login session behind a request.
type AccessClaims struct {
	UserID    string
	SessionID string
}

func IssueAccessToken(secret, userID, sessionID string, exp time.Time) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        userID,
		"sid":        sessionID,
		"token_type": "access",
		"exp":        exp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(secret))
}

func ParseAccessToken(secret, tokenStr string) (AccessClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return AccessClaims{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != "access" {
		return AccessClaims{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	if sub == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return AccessClaims{UserID: sub, SessionID: sid}, nil
}
