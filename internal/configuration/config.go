package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"Outreach/internal/api"
	"Outreach/internal/auth"
	"Outreach/internal/hub"
	"Outreach/internal/presence"
	"Outreach/internal/transport"
)

var ErrMissingBaseURL = errors.New("api.baseUrl is required")

type ApiConfig struct {
	BaseURL        string    `json:"baseUrl"`
	TimeoutSeconds int       `json:"timeoutSeconds"`
	MaxRetries     int       `json:"maxRetries"`
	Paths          api.Paths `json:"paths"`
}

type SocketConfig struct {
	URL                 string `json:"url"` // derived from api.baseUrl when empty
	TokenQueryParam     string `json:"tokenQueryParam"`
	HandshakeSeconds    int    `json:"handshakeSeconds"`
	PongWaitSeconds     int    `json:"pongWaitSeconds"`
	DisableReconnect    bool   `json:"disableReconnect"`
	ReconnectMaxSeconds int    `json:"reconnectMaxSeconds"`
}

type AuthConfig struct {
	EnvVar      string `json:"envVar"`
	SessionFile string `json:"sessionFile"`
}

type TypingConfig struct {
	WindowMillis    int `json:"windowMillis"`
	RemoteTTLMillis int `json:"remoteTtlMillis"` // negative disables expiry
}

type MongoConfig struct {
	Uri              string `json:"uri"` // empty disables the snapshot cache
	Database         string `json:"database"`
	SnapshotTTLHours int    `json:"snapshotTtlHours"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type LogConfig struct {
	Development bool   `json:"development"`
	Level       string `json:"level"`
}

type Config struct {
	Api    ApiConfig    `json:"api"`
	Socket SocketConfig `json:"socket"`
	Auth   AuthConfig   `json:"auth"`
	Typing TypingConfig `json:"typing"`
	Mongo  MongoConfig  `json:"mongo"`
	Server ServerConfig `json:"server"`
	Log    LogConfig    `json:"log"`
}

// LoadConfig reads the JSON file at config_path (skipped when empty), then applies .env
// and OUTREACH_* overrides and fills defaults.
func LoadConfig(config_path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	var config Config
	if config_path != "" {
		file, err := os.ReadFile(config_path)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", config_path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if config.Api.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	return &config, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"OUTREACH_API_URL":      &c.Api.BaseURL,
		"OUTREACH_SOCKET_URL":   &c.Socket.URL,
		"OUTREACH_MONGO_URI":    &c.Mongo.Uri,
		"OUTREACH_MONGO_DB":     &c.Mongo.Database,
		"OUTREACH_LOG_LEVEL":    &c.Log.Level,
		"OUTREACH_SESSION_FILE": &c.Auth.SessionFile,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("OUTREACH_APP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OUTREACH_APP_PORT: %w", err)
		}
		c.Server.AppPort = port
	}
	if v := os.Getenv("OUTREACH_LOG_DEVELOPMENT"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OUTREACH_LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = dev
	}
	if v := os.Getenv("OUTREACH_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Api.BaseURL = strings.TrimRight(c.Api.BaseURL, "/")
	if c.Api.TimeoutSeconds <= 0 {
		c.Api.TimeoutSeconds = 20
	}
	if c.Api.MaxRetries <= 0 {
		c.Api.MaxRetries = 3
	}
	if c.Socket.URL == "" && c.Api.BaseURL != "" {
		c.Socket.URL = socketURL(c.Api.BaseURL)
	}
	if c.Auth.EnvVar == "" {
		c.Auth.EnvVar = auth.DefaultEnvVar
	}
	if c.Auth.SessionFile == "" {
		c.Auth.SessionFile = auth.DefaultSessionFile()
	}
	if c.Typing.WindowMillis <= 0 {
		c.Typing.WindowMillis = int(presence.DefaultTypingWindow / time.Millisecond)
	}
	if c.Typing.RemoteTTLMillis == 0 {
		c.Typing.RemoteTTLMillis = int(presence.DefaultRemoteTTL / time.Millisecond)
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "outreach"
	}
	if c.Mongo.SnapshotTTLHours <= 0 {
		c.Mongo.SnapshotTTLHours = 24 * 30
	}
	if c.Server.AppPort <= 0 {
		c.Server.AppPort = 8085
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// socketURL maps http(s)://host/path to ws(s)://host/path/socket.
func socketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/socket"
}

func (c *Config) ApiOptions(token string) api.Options {
	return api.Options{
		BaseURL:    c.Api.BaseURL,
		Token:      token,
		Paths:      c.Api.Paths,
		Timeout:    seconds(c.Api.TimeoutSeconds),
		MaxRetries: c.Api.MaxRetries,
	}
}

func (c *Config) SocketOptions() transport.Options {
	return transport.Options{
		URL:              c.Socket.URL,
		TokenQueryParam:  c.Socket.TokenQueryParam,
		HandshakeTimeout: seconds(c.Socket.HandshakeSeconds),
		PongWait:         seconds(c.Socket.PongWaitSeconds),
		Reconnect:        !c.Socket.DisableReconnect,
		ReconnectMax:     seconds(c.Socket.ReconnectMaxSeconds),
	}
}

func (c *Config) HubOptions() hub.Options {
	return hub.Options{AllowedOrigins: c.Server.AllowedOrigins}
}

func (c *Config) TypingWindow() time.Duration {
	return time.Duration(c.Typing.WindowMillis) * time.Millisecond
}

// RemoteTTL is zero, which disables expiry, when configured negative.
func (c *Config) RemoteTTL() time.Duration {
	if c.Typing.RemoteTTLMillis < 0 {
		return 0
	}
	return time.Duration(c.Typing.RemoteTTLMillis) * time.Millisecond
}

func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Mongo.SnapshotTTLHours) * time.Hour
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
