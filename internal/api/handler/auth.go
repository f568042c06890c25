package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"konferans/backend/internal/config"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// OwnerClaims marks the bearer as the creator of one room.
type OwnerClaims struct {
	OwnerRoom string `json:"owner_room"`
	jwt.RegisteredClaims
}

var errNoBearer = errors.New("authorization bearer token missing")

// generateOwnerToken signs an owner token for roomID with HS256.
func generateOwnerToken(secret []byte, roomID string) (string, error) {
	now := time.Now()
	claims := OwnerClaims{
		OwnerRoom: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.OwnerTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.OwnerTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// parseOwnerToken validates the signature, issuer and expiry and returns the owned room.
func parseOwnerToken(secret []byte, tokenString string) (string, error) {
	claims := &OwnerClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.OwnerTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("owner token: %w", err)
	}
	return claims.OwnerRoom, nil
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", errNoBearer
	}
	return token, nil
}

// isOwner reports whether the request carries a valid owner token for roomID.
func (h *Handler) isOwner(c *gin.Context, roomID string) bool {
	token, err := bearerToken(c)
	if err != nil {
		return false
	}
	owned, err := parseOwnerToken(h.Secret, token)
	if err != nil {
		h.log.Debug().Err(err).Str("room_id", roomID).Msg("Ignoring invalid owner token")
		return false
	}
	return owned == roomID
}
