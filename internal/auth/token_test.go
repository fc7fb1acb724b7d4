package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestTokenPrefersEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(`{"token":"from-file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OUTREACH_TEST_TOKEN", " from-env ")
	src := NewTokenSource("OUTREACH_TEST_TOKEN", path)

	got, err := src.Token()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected env token, got %q", got)
	}
}

func TestTokenFallsBackToSessionFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(`{"token":"from-file","user":"u1"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OUTREACH_TEST_TOKEN", "")
	got, err := NewTokenSource("OUTREACH_TEST_TOKEN", path).Token()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file token, got %q", got)
	}
}

func TestTokenAbsent(t *testing.T) {
	t.Setenv("OUTREACH_TEST_TOKEN", "")

	missing := NewTokenSource("OUTREACH_TEST_TOKEN", filepath.Join(t.TempDir(), "nope.json"))
	if _, err := missing.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken for missing file, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"token":""}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenSource("OUTREACH_TEST_TOKEN", path).Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken for empty token, got %v", err)
	}
}

func TestTokenCorruptSessionFile(t *testing.T) {
	t.Setenv("OUTREACH_TEST_TOKEN", "")
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewTokenSource("OUTREACH_TEST_TOKEN", path).Token()
	if err == nil || errors.Is(err, ErrNoToken) {
		t.Fatalf("expected a decode error, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		claims  jwt.Claims
		wantErr error
		wantSub string
	}{
		{
			name: "valid with subject",
			claims: jwt.RegisteredClaims{
				Subject:   "u1",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			wantSub: "u1",
		},
		{
			name:    "userId claim wins",
			claims:  jwt.MapClaims{"sub": "u1", "userId": "staff-7"},
			wantSub: "staff-7",
		},
		{
			name: "expired",
			claims: jwt.RegisteredClaims{
				Subject:   "u1",
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			},
			wantErr: ErrExpiredToken,
			wantSub: "u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := Inspect(signed(t, tt.claims), now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if claims.SubjectID() != tt.wantSub {
				t.Fatalf("expected subject %q, got %q", tt.wantSub, claims.SubjectID())
			}
		})
	}
}

func TestInspectMalformed(t *testing.T) {
	if _, err := Inspect("not-a-jwt", time.Now()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
