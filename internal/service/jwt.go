package service

import (
	"errors"
	"time"

	"hidden_mines/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

var jwtSecret []byte

func InitJWT(secret string) {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
}

func GenerateJWT(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"actor": actor.Hex(),
		"exp":   now.Add(tokenTTL).Unix(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (domain.Actor, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	}, jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, errors.New("invalid claims")
	}

	raw, ok := claims["actor"].(string)
	if !ok || !common.IsHexAddress(raw) {
		return domain.Actor{}, errors.New("actor not found")
	}

	return common.HexToAddress(raw), nil
}
