package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DownloadClaims scope a token to exactly one file.
type DownloadClaims struct {
	FileID string `json:"file_id"`
	jwt.RegisteredClaims
}

// DownloadSigner issues and verifies short-lived tokens that grant access to
// a single file download without any other credentials.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	return &DownloadSigner{secret: []byte(secret), ttl: ttl}
}

func (s *DownloadSigner) Sign(fileID uuid.UUID) (string, time.Time, error) {
	expires := time.Now().Add(s.ttl)
	claims := DownloadClaims{
		FileID: fileID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fileID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expires, nil
}

// Verify returns the file id the token grants access to.
func (s *DownloadSigner) Verify(tokenStr string) (uuid.UUID, error) {
	claims := &DownloadClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid download token")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return uuid.Nil, fmt.Errorf("download token expired")
	}

	id, err := uuid.Parse(claims.FileID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid file id in download token")
	}
	return id, nil
}
