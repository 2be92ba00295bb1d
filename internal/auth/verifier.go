// Package auth verifies the signed handshake token a connection presents
// before it is admitted into a namespace. The verifier checks signature and
// expiry only; it deliberately does not re-query user existence, unlike the
// HTTP auth path of the REST tier.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Rejection reasons form a closed set surfaced to the client verbatim.
const (
	ReasonNoToken      = "no_token"
	ReasonInvalidToken = "invalid_token"
	ReasonExpiredToken = "expired_token"
)

var (
	ErrNoToken      = errors.New(ReasonNoToken)
	ErrInvalidToken = errors.New(ReasonInvalidToken)
	ErrExpiredToken = errors.New(ReasonExpiredToken)
)

// UserType distinguishes the two sides of the marketplace.
type UserType string

const (
	UserTypeClient    UserType = "client"
	UserTypeDeveloper UserType = "developer"
)

// UserCredential is produced once per handshake and attached read-only to the
// admitted connection.
type UserCredential struct {
	ID       string
	Email    string
	UserType UserType
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the embedded credential.
// Failures map onto the closed reason set: ErrNoToken for an empty token,
// ErrExpiredToken when the signature is good but the token is stale, and
// ErrInvalidToken for everything else.
func (v *Verifier) Verify(tokenString string) (*UserCredential, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)

	userType, ok := claims["userType"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	switch UserType(userType) {
	case UserTypeClient, UserTypeDeveloper:
	default:
		return nil, ErrInvalidToken
	}

	return &UserCredential{
		ID:       id,
		Email:    email,
		UserType: UserType(userType),
	}, nil
}

// TokenFromRequest extracts the handshake token from the explicit auth field
// (query parameter or bearer header) or, failing that, from the token cookie
// set by the REST tier.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return strings.TrimPrefix(token, "Bearer ")
	}

	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}

	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}

	return ""
}

// Reason maps a verification error back onto the closed reason set.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return ReasonNoToken
	case errors.Is(err, ErrExpiredToken):
		return ReasonExpiredToken
	default:
		return ReasonInvalidToken
	}
}
