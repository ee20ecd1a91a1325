package util

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Hour)

	token, err := signer.Issue("owner-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	ownerID, err := signer.Validate(token)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if ownerID != "owner-1" {
		t.Fatalf("expected owner-1, got %q", ownerID)
	}
}

func TestTokenSigner_Tampered(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Hour)

	token, err := signer.Issue("owner-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.SplitN(token, ".", 2)
	forged := parts[0] + "x." + parts[1]
	if _, err := signer.Validate(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenSigner_WrongSecret(t *testing.T) {
	token, err := NewTokenSigner([]byte("secret-a"), time.Hour).Issue("owner-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := NewTokenSigner([]byte("secret-b"), time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenSigner_Expired(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), -time.Minute)

	token, err := signer.Issue("owner-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := signer.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenSigner_MissingSecret(t *testing.T) {
	signer := NewTokenSigner(nil, time.Hour)

	if _, err := signer.Issue("owner-1"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if _, err := signer.Validate("whatever"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
