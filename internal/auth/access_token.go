package auth

import (
	"errors"
	"fmt"
	"time"

	"gym-checkin/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims bind a mobile access token to one check-in code. The token
// expires with the code.
type AccessClaims struct {
	CodeID  string `json:"code_id"`
	VenueID string `json:"venue_id"`
	jwt.RegisteredClaims
}

// AccessTokens issues and verifies HS256 access tokens.
type AccessTokens struct {
	secret []byte
	now    func() time.Time
}

func NewAccessTokens(secret string) *AccessTokens {
	return &AccessTokens{secret: []byte(secret), now: time.Now}
}

func (a *AccessTokens) Issue(code *models.CheckInCode) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("access token secret not configured")
	}
	claims := AccessClaims{
		CodeID:  code.ID,
		VenueID: code.VenueID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   code.UserID,
			IssuedAt:  jwt.NewNumericDate(a.now()),
			ExpiresAt: jwt.NewNumericDate(code.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify returns the code and venue the token was issued for.
func (a *AccessTokens) Verify(token string) (string, string, error) {
	var claims AccessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", "", fmt.Errorf("parse access token: %w", err)
	}
	if claims.CodeID == "" || claims.VenueID == "" {
		return "", "", errors.New("access token missing code binding")
	}
	return claims.CodeID, claims.VenueID, nil
}
