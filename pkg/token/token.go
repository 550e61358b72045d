package token

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleType set user role
type RoleType string

const (
	// RoleAdmin is the admin role, required by the chatbot namespace
	RoleAdmin RoleType = "admin"
	// RoleLecturer is the lecturer role
	RoleLecturer RoleType = "lecturer"
	// RoleStudent is the student role
	RoleStudent RoleType = "student"
)

// Claims structure for custom claims in JWT
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var (
	secretMu        sync.RWMutex
	jwtSecret       = []byte("secure_secret_key")
	tokenExpiration = 60 * time.Minute

	// ErrInvalidToken token failed validation
	ErrInvalidToken = errors.New("invalid token")
)

// SetSecret replaces the HMAC signing key
func SetSecret(secret string) {
	if secret == "" {
		return
	}
	secretMu.Lock()
	defer secretMu.Unlock()
	jwtSecret = []byte(secret)
}

func secret() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return jwtSecret
}

// GenerateJWT generates a JWT token
func GenerateJWT(userID, role, issuer string) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret())
}

// ParseJWT validates tokenStr and extracts the Claims. A "Bearer " prefix is accepted.
func ParseJWT(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")

	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret(), nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDUnverified reads the user id without checking the signature. Clients use it to
// learn their own id from the credential they were handed; never use it for auth.
func UserIDUnverified(tokenStr string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimPrefix(tokenStr, "Bearer "), claims); err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
