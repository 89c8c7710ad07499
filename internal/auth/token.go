package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はアクセストークンに含めるクレームです
// sub にメールアドレスを格納します
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// User はクレームから利用者を復元します
func (c *Claims) User() User {
	return User{Email: c.Subject, Name: c.Name, Role: c.Role}
}

// TokenIssuer は HS256 で署名したアクセストークンを発行します
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer は新しいTokenIssuerを作成します
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Secret は署名鍵を返します
func (i *TokenIssuer) Secret() []byte {
	return i.secret
}

// Issue は利用者のアクセストークンを発行します
func (i *TokenIssuer) Issue(u User) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		Name: u.Name,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse はトークンを検証してクレームを返します
func (i *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
