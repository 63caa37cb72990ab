package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload. Role and grade travel in the token so scoping
// does not need a directory lookup per request.
type Claims struct {
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  attendance.Role `json:"role"`
	Grade int             `json:"grade,omitempty"`
	Use   string          `json:"use"`
	jwt.RegisteredClaims
}

// User rebuilds the dashboard user carried by the claims.
func (c Claims) User() attendance.User {
	return attendance.User{ID: c.Subject, Name: c.Name, Email: c.Email, Role: c.Role, Grade: c.Grade}
}

// Issue issues signed access and refresh tokens for user.
func Issue(user attendance.User, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	accessToken, err := sign(user, useAccess, issuer, key, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := sign(user, useRefresh, issuer, key, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func sign(user attendance.User, use, issuer, key string, issued, exp time.Time) (string, error) {
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		Grade: user.Grade,
		Use:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// Parse validates an access token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	return parse(tokenStr, key, issuer, useAccess)
}

// ParseRefresh validates a refresh token and returns claims.
func ParseRefresh(tokenStr, key, issuer string) (Claims, error) {
	return parse(tokenStr, key, issuer, useRefresh)
}

func parse(tokenStr, key, issuer, use string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Use != use {
		return Claims{}, errors.New("wrong token use")
	}
	return *claims, nil
}
