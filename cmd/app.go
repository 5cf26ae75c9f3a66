package main

import (
	"context"
	"fmt"

	"github.com/dtroode/memberpass/internal/fieldcrypt"
	"github.com/dtroode/memberpass/internal/metrics"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/ratelimit"
	"github.com/dtroode/memberpass/internal/repository/sqlstore"
	"github.com/dtroode/memberpass/internal/service"
	"github.com/dtroode/memberpass/internal/storage/filesystem"
	storage "github.com/dtroode/memberpass/internal/storage/minio"
	"github.com/dtroode/memberpass/internal/token"
)

const magicLinkScope = "magic-link"

// photoBackend is a blob store that can also report its health.
type photoBackend interface {
	model.Storage
	model.HealthChecker
}

func (c *cli) openConnection(ctx context.Context) (*sqlstore.Connection, error) {
	db := c.cfg.Database
	conn, err := sqlstore.NewConnection(ctx, db.Driver, db.DSN, db.LockFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry storage: %w", err)
	}
	return conn, nil
}

func (c *cli) newRegistry(conn *sqlstore.Connection, m *metrics.Metrics) (*service.Registry, error) {
	cipher, err := fieldcrypt.New(c.cfg.Registry.Secret, fieldcrypt.Policy{Mask: c.cfg.Registry.MaskDecryptFailures})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize field cipher: %w", err)
	}
	return service.NewRegistry(sqlstore.NewMemberRepository(conn), cipher, c.cfg.DelimiterRune(), m, c.logger), nil
}

// withRegistry opens the registry for the duration of fn.
func (c *cli) withRegistry(ctx context.Context, fn func(*service.Registry) error) error {
	conn, err := c.openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	registry, err := c.newRegistry(conn, nil)
	if err != nil {
		return err
	}
	return fn(registry)
}

func (c *cli) newTokens() (*token.Service, error) {
	tokens, err := token.NewService(c.cfg.Token.Secret, c.cfg.Token.MaxAge, nil, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	return tokens, nil
}

func (c *cli) newPhotoBackend(ctx context.Context) (photoBackend, error) {
	switch c.cfg.Photo.Backend {
	case "minio":
		s := c.cfg.Storage
		client, err := storage.Dial(ctx, storage.Options{
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Bucket:    s.Bucket,
			UseSSL:    s.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize photo storage: %w", err)
		}
		return client, nil
	default:
		store, err := filesystem.NewStore(c.cfg.Photo.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize photo storage: %w", err)
		}
		return store, nil
	}
}

func (c *cli) newPhotos(ctx context.Context, tokens *token.Service, m *metrics.Metrics) (*service.Photos, photoBackend, error) {
	backend, err := c.newPhotoBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.NewPhotos(backend, tokens, m, c.logger), backend, nil
}

// newLimiter returns a Redis limiter when RATELIMIT_REDIS_URL is set and
// a process-local one otherwise. The returned func releases it.
func (c *cli) newLimiter(ctx context.Context) (ratelimit.Limiter, func() error, error) {
	rl := c.cfg.RateLimit
	if rl.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(rl.MagicLinkLimit, rl.MagicLinkWindow, nil), func() error { return nil }, nil
	}

	client, err := ratelimit.NewRedisClient(ctx, rl.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	return ratelimit.NewRedisLimiter(client, magicLinkScope, rl.MagicLinkLimit, rl.MagicLinkWindow), client.Close, nil
}
