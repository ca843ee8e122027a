package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/waxal-io/waxal/utils"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService validates the access tokens issued by the platform's identity
// service. This service never issues tokens; authentication lives outside it.
type TokenService interface {
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in an access token
type TokenClaims struct {
	CustomerID uint      `json:"customer_id"`
	Login      string    `json:"login"`
	Role       string    `json:"role"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	secretKey []byte
	issuer    string
}

// NewTokenService creates a new token service
func NewTokenService(secretKey, issuer string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	return &TokenServiceImpl{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}, nil
}

// ValidateToken parses and validates an access token
func (s *TokenServiceImpl) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	out := &TokenClaims{}
	if v, ok := claims["customer_id"].(float64); ok {
		out.CustomerID = uint(v)
	}
	if v, ok := claims["login"].(string); ok {
		out.Login = v
	}
	if v, ok := claims["role"].(string); ok {
		out.Role = v
	}
	if v, ok := claims["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(v), 0).UTC()
	}

	if out.CustomerID == 0 || out.Login == "" {
		return nil, ErrTokenInvalid
	}
	if !out.ExpiresAt.IsZero() && utils.UTCNow().After(out.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return out, nil
}
