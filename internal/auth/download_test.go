package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDownloadTokenRoundTrip(t *testing.T) {
	signer := NewDownloadSigner("test-secret", time.Minute)
	fileID := uuid.New()

	token, expires, err := signer.Sign(fileID)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Error("expiry should be in the future")
	}

	got, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != fileID {
		t.Errorf("file id = %s, want %s", got, fileID)
	}
}

func TestDownloadTokenExpired(t *testing.T) {
	signer := NewDownloadSigner("test-secret", -time.Minute)
	token, _, err := signer.Sign(uuid.New())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := signer.Verify(token); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestDownloadTokenWrongSecret(t *testing.T) {
	token, _, err := NewDownloadSigner("secret-a", time.Minute).Sign(uuid.New())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := NewDownloadSigner("secret-b", time.Minute).Verify(token); err == nil {
		t.Error("token signed with another secret must not verify")
	}
}

func TestDownloadTokenGarbage(t *testing.T) {
	if _, err := NewDownloadSigner("secret", time.Minute).Verify("not-a-token"); err == nil {
		t.Error("garbage must not verify")
	}
}
