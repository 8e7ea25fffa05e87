package container

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	config "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Config"
	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
)

// Container manages dependencies and their lifecycle for the API service
type Container struct {
	config *config.Config
	logger *logger.Logger

	mongoClient *mongo.Client

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions
	cleanupFuncs []func(context.Context) error
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*Container, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging)

	return &Container{
		config: cfg,
		logger: log,
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetMongoCollection connects to the primary document store and returns
// the readings collection. Returns nil without error when no URI is
// configured: the service then runs on the local fallback store alone.
func (c *Container) GetMongoCollection(ctx context.Context) (*mongo.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.Mongo.URI == "" {
		return nil, nil
	}

	if c.mongoClient == nil {
		ctx, cancel := context.WithTimeout(ctx, c.config.Mongo.ConnectTimeout)
		defer cancel()

		opts := options.Client().
			ApplyURI(c.config.Mongo.URI).
			SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
			SetServerSelectionTimeout(c.config.Mongo.ConnectTimeout).
			SetConnectTimeout(c.config.Mongo.ConnectTimeout)

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
		}

		c.mongoClient = client
		c.cleanupFuncs = append(c.cleanupFuncs, client.Disconnect)
	}

	return c.mongoClient.Database(c.config.Mongo.Database).Collection(c.config.Mongo.Collection), nil
}

// PingStore reports primary store reachability. configured is false when
// no URI is set; the service then runs on the fallback store and the probe
// is not a failure.
func (c *Container) PingStore(ctx context.Context) (configured bool, err error) {
	c.mu.Lock()
	client := c.mongoClient
	c.mu.Unlock()

	if c.config.Mongo.URI == "" {
		return false, nil
	}
	if client == nil {
		return true, fmt.Errorf("primary store not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Mongo.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return true, fmt.Errorf("unable to ping MongoDB: %w", err)
	}
	return true, nil
}

// Shutdown runs all registered cleanup functions
func (c *Container) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cleanup := range c.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			c.logger.ErrorWithError(err, "Cleanup failed during shutdown")
		}
	}
	c.cleanupFuncs = nil
}
