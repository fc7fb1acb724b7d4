package configuration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"Outreach/internal/api"
	"Outreach/internal/auth"
	"Outreach/internal/chat"
	"Outreach/internal/db"
	"Outreach/internal/handler"
	"Outreach/internal/hub"
	"Outreach/internal/presence"
	"Outreach/internal/repo"
	"Outreach/internal/service"
	"Outreach/internal/transport"
)

type Container struct {
	ChatHandler    handler.ChatHandler
	MonitorHandler handler.MonitorHandler
	ChatService    service.ChatService
	Session        *chat.Session
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Client
	cancel      context.CancelFunc
}

func BuildContainer(config_path string) (*Container, error) {
	config, err := LoadConfig(config_path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := NewLogger(config.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	token, err := auth.NewTokenSource(config.Auth.EnvVar, config.Auth.SessionFile).Token()
	switch {
	case errors.Is(err, auth.ErrNoToken):
		logger.Warn("no bearer token found, chat will stay offline",
			zap.String("env_var", config.Auth.EnvVar),
			zap.String("session_file", config.Auth.SessionFile),
		)
	case err != nil:
		logger.Warn("failed to read bearer token", zap.Error(err))
	}

	c := &Container{
		Config: *config,
		Logger: logger,
	}

	var cache chat.Cache
	if config.Mongo.Uri != "" {
		cache, err = c.openSnapshotCache()
		if err != nil {
			// the cache only speeds up startup
			logger.Warn("snapshot cache unavailable", zap.Error(err))
			cache = nil
		}
	}

	apiClient := api.NewClient(config.ApiOptions(token), logger.Named("api"))
	dialer := transport.NewDialer(config.SocketOptions(), logger.Named("socket"))

	sessionConfig := chat.Config{
		Backend:      apiClient,
		Dial:         dialFunc(dialer),
		Token:        token,
		Clock:        presence.SystemClock{},
		TypingWindow: config.TypingWindow(),
		RemoteTTL:    config.RemoteTTL(),
		FetchTimeout: seconds(config.Api.TimeoutSeconds),
		Logger:       logger.Named("chat"),
	}
	if cache != nil {
		sessionConfig.Cache = cache
	}
	c.Session = chat.NewSession(sessionConfig)

	c.Hub = hub.NewHub(config.HubOptions(), logger.Named("feed"))
	c.ChatService = service.NewChatService(c.Session, logger.Named("service"))
	c.ChatHandler = handler.NewChatHandler(c.ChatService)
	c.MonitorHandler = handler.NewMonitorHandler(hub.NewMonitorService(c.Session, c.Hub))

	return c, nil
}

// Start seeds the session, opens the channel and starts pushing state to UI clients.
func (c *Container) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	updates, unsubscribe := c.Session.Subscribe()
	go func() {
		defer unsubscribe()
		c.Hub.Follow(ctx, updates, func() any { return c.ChatService.View() })
	}()

	err := c.Session.Start(ctx)
	switch {
	case errors.Is(err, chat.ErrClosed):
		return err
	case err != nil && !errors.Is(err, transport.ErrNoCredential):
		// the UI still gets the seeded lists while offline
		c.Logger.Warn("chat channel not opened", zap.Error(err))
	}
	return nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	if c.cancel != nil {
		c.cancel()
	}

	// Stop the hub first (closes all UI connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Session != nil {
		_ = c.Session.Close()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}

func (c *Container) openSnapshotCache() (repo.SnapshotRepository, error) {
	ctx := context.Background()
	client, database, err := db.OpenConnection(ctx, c.Config.Mongo.Uri, c.Config.Mongo.Database)
	if err != nil {
		return nil, err
	}
	c.mongoClient = client

	if err := repo.EnsureIndexes(ctx, database); err != nil {
		c.Logger.Warn("failed to ensure snapshot indexes", zap.Error(err))
	}

	snapshots := repo.NewSnapshotRepository(database, c.Logger.Named("snapshots"))
	if _, err := snapshots.Prune(ctx, time.Now().Add(-c.Config.SnapshotTTL())); err != nil {
		c.Logger.Warn("failed to prune snapshots", zap.Error(err))
	}
	return snapshots, nil
}

// dialFunc adapts the websocket dialer to the session's channel contract.
func dialFunc(d *transport.Dialer) chat.DialFunc {
	return func(ctx context.Context, token string, h transport.Handler) (chat.Channel, error) {
		conn, err := d.Dial(ctx, token, h)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// NewLogger builds the production logger, or the development one when configured.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
