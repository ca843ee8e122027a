package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "unit-test-secret"
	testIssuer = "waxal-identity"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now().UTC()
	return jwt.MapClaims{
		"iss":         testIssuer,
		"customer_id": float64(42),
		"login":       "acme",
		"role":        "customer",
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
	}
}

func TestValidateTokenReturnsClaims(t *testing.T) {
	svc, err := NewTokenService(testSecret, testIssuer)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(signToken(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.CustomerID)
	assert.Equal(t, "acme", claims.Login)
	assert.Equal(t, "customer", claims.Role)
	assert.False(t, claims.IssuedAt.IsZero())
	assert.True(t, claims.ExpiresAt.After(time.Now().UTC()))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, err := NewTokenService(testSecret, testIssuer)
	require.NoError(t, err)

	claims := validClaims()
	claims["iat"] = time.Now().UTC().Add(-2 * time.Hour).Unix()
	claims["exp"] = time.Now().UTC().Add(-time.Hour).Unix()

	_, err = svc.ValidateToken(signToken(t, claims))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	svc, err := NewTokenService(testSecret, testIssuer)
	require.NoError(t, err)

	claims := validClaims()
	claims["iss"] = "someone-else"

	_, err = svc.ValidateToken(signToken(t, claims))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, err := NewTokenService("a-different-secret", testIssuer)
	require.NoError(t, err)

	_, err = svc.ValidateToken(signToken(t, validClaims()))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenRejectsMissingCustomerID(t *testing.T) {
	svc, err := NewTokenService(testSecret, testIssuer)
	require.NoError(t, err)

	claims := validClaims()
	delete(claims, "customer_id")

	_, err = svc.ValidateToken(signToken(t, claims))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, err := NewTokenService(testSecret, testIssuer)
	require.NoError(t, err)

	_, err = svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService("", testIssuer)
	assert.Error(t, err)
}
