package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"id":       "user-1",
		"email":    "user@example.com",
		"userType": "developer",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyValidToken(t *testing.T) {
	verifier := NewVerifier(testSecret)

	cred, err := verifier.Verify(signToken(t, testSecret, validClaims()))

	require.NoError(t, err)
	assert.Equal(t, "user-1", cred.ID)
	assert.Equal(t, "user@example.com", cred.Email)
	assert.Equal(t, UserTypeDeveloper, cred.UserType)
}

func TestVerifyEmptyToken(t *testing.T) {
	verifier := NewVerifier(testSecret)

	_, err := verifier.Verify("")

	assert.ErrorIs(t, err, ErrNoToken)
	assert.Equal(t, ReasonNoToken, Reason(err))
}

func TestVerifyMalformedToken(t *testing.T) {
	verifier := NewVerifier(testSecret)

	_, err := verifier.Verify("not-a-token")

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, ReasonInvalidToken, Reason(err))
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier := NewVerifier(testSecret)

	_, err := verifier.Verify(signToken(t, "other-secret", validClaims()))

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier := NewVerifier(testSecret)
	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	_, err := verifier.Verify(signToken(t, testSecret, claims))

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Equal(t, ReasonExpiredToken, Reason(err))
}

func TestVerifyRejectsUnknownUserType(t *testing.T) {
	verifier := NewVerifier(testSecret)
	claims := validClaims()
	claims["userType"] = "admin"

	_, err := verifier.Verify(signToken(t, testSecret, claims))

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingID(t *testing.T) {
	verifier := NewVerifier(testSecret)
	claims := validClaims()
	delete(claims, "id")

	_, err := verifier.Verify(signToken(t, testSecret, claims))

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequestSources(t *testing.T) {
	// Query parameter wins.
	r := httptest.NewRequest(http.MethodGet, "/ws/notifications?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})
	assert.Equal(t, "from-query", TokenFromRequest(r))

	// Then the bearer header.
	r = httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})
	assert.Equal(t, "from-header", TokenFromRequest(r))

	// Then the cookie.
	r = httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))

	// Nothing present.
	r = httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	assert.Empty(t, TokenFromRequest(r))
}
