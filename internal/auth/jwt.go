package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ShifaPortalwebserver/internal/domain"
)

// Claims is what a signed bearer token carries: the account id as subject
// plus the role used for dashboard routing and admin checks.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return &TokenManager{secret: secretCopy, ttl: ttl, now: time.Now}
}

func (m *TokenManager) Sign(accountID string, role domain.Role) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role: role,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) Parse(tokenString string) (Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Claims{}, domain.ErrUnauthorized
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, domain.ErrUnauthorized
	}
	return *claims, nil
}
