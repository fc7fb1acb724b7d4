package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultEnvVar = "OUTREACH_TOKEN"
	sessionKey    = "token"
)

var (
	ErrNoToken      = errors.New("no bearer token available")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenSource finds the bearer credential issued by the login flow. The environment
// wins over the session file.
type TokenSource struct {
	EnvVar      string
	SessionFile string
}

// DefaultSessionFile is ~/.config/outreach/session.json, or "" when there is no home.
func DefaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "outreach", "session.json")
}

func NewTokenSource(envVar, sessionFile string) *TokenSource {
	if envVar == "" {
		envVar = DefaultEnvVar
	}
	if sessionFile == "" {
		sessionFile = DefaultSessionFile()
	}
	return &TokenSource{EnvVar: envVar, SessionFile: sessionFile}
}

// Token returns the stored credential. A missing session file is ErrNoToken, not an
// error of its own.
func (s *TokenSource) Token() (string, error) {
	if v := strings.TrimSpace(os.Getenv(s.EnvVar)); v != "" {
		return v, nil
	}
	if s.SessionFile == "" {
		return "", ErrNoToken
	}

	raw, err := os.ReadFile(s.SessionFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read session file: %w", err)
	}

	var session map[string]any
	if err := json.Unmarshal(raw, &session); err != nil {
		return "", fmt.Errorf("decode session file %s: %w", s.SessionFile, err)
	}
	token, _ := session[sessionKey].(string)
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Claims is the subset of the token the client cares about.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// SubjectID returns the user id carried by the token, preferring the explicit userId claim.
func (c *Claims) SubjectID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// Inspect decodes token without verifying its signature; the server does that. It only
// rejects tokens that are malformed or already expired at now.
func Inspect(token string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return claims, ErrExpiredToken
	}
	return claims, nil
}
