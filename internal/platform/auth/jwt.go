package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	Email     string `json:"email"`
	TokenType string `json:"type"`
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess creates a signed access token for the user.
func (i *TokenIssuer) IssueAccess(userID, role, email string) (string, error) {
	return i.issue(userID, role, email, TokenTypeAccess, i.accessTTL)
}

// IssueRefresh creates a signed refresh token for the user.
func (i *TokenIssuer) IssueRefresh(userID, role, email string) (string, error) {
	return i.issue(userID, role, email, TokenTypeRefresh, i.refreshTTL)
}

func (i *TokenIssuer) issue(userID, role, email, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      role,
		Email:     email,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token of either type.
func (i *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// VerifyAccess validates a token and requires it to be an access token.
func (i *TokenIssuer) VerifyAccess(tokenStr string) (*Claims, error) {
	claims, err := i.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("token is not an access token")
	}
	return claims, nil
}

// Refresh validates a refresh token and issues a fresh access/refresh pair.
// The old refresh token is not reusable in the sense that callers are expected
// to discard it; rotation keeps the refresh window sliding.
func (i *TokenIssuer) Refresh(refreshToken string) (access, refresh string, err error) {
	claims, err := i.Verify(refreshToken)
	if err != nil {
		return "", "", err
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", "", fmt.Errorf("token is not a refresh token")
	}

	access, err = i.IssueAccess(claims.Subject, claims.Role, claims.Email)
	if err != nil {
		return "", "", err
	}
	refresh, err = i.IssueRefresh(claims.Subject, claims.Role, claims.Email)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
