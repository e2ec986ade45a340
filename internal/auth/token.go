package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const channelTokenTTL = 12 * time.Hour

// ChannelClaims are the claims carried by a chat channel token. The token is
// minted when a signed-in user opens the app and presented on the websocket
// join, so the chat server never touches the session store.
type ChannelClaims struct {
	UserID      int64  `json:"uid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies chat channel tokens.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Mint signs a channel token for the given user.
func (t *TokenIssuer) Mint(userID int64, username, displayName, avatarURL string) (string, error) {
	now := time.Now()
	claims := ChannelClaims{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(channelTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign channel token: %w", err)
	}
	return signed, nil
}

// Verify parses a channel token and returns its claims.
func (t *TokenIssuer) Verify(tokenString string) (*ChannelClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChannelClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse channel token: %w", err)
	}

	claims, ok := token.Claims.(*ChannelClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid channel token")
	}
	return claims, nil
}
