// Package auth implements the signed token formats used by the host: the
// file-scoped access token handed to the editor and the admin token accepted
// by the gRPC surface. Both are HS256 JWTs signed with the server secret.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the set of claims carried by every token. FileID is empty for
// admin tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
	FileID string `json:",omitempty"`
}

// GenerateAccessToken signs a token bound to fileID and userID. It carries a
// random jti and no exp claim: access token expiry is tracked by the token
// store, which may extend it without re-signing.
func GenerateAccessToken(fileID, userID string, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
		FileID: fileID,
	})

	return token.SignedString(secretKey)
}

// ParseAccessToken verifies the signature and returns the embedded claims.
func ParseAccessToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return nil, err
	}
	if claims.FileID == "" || claims.UserID == "" {
		return nil, common.ErrTokenInvalid
	}
	return claims, nil
}

// GenerateToken signs an admin token for userID valid for validityDuration.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken validates an admin token and returns its UserID.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	if claims.ExpiresAt == nil {
		// access tokens never authorize admin calls
		return "", common.ErrTokenInvalid
	}
	return claims.UserID, nil
}

func parse(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenInvalid
		}
		return nil, err
	}

	if !token.Valid {
		return nil, common.ErrTokenInvalid
	}

	return claims, nil
}
