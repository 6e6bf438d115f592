package cli

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/config"
	"github.com/goliatone/go-portal-auth/repository"
	"github.com/goliatone/go-portal-auth/storage/filestore"
	"github.com/goliatone/go-portal-auth/storage/redisstore"
)

// openStore builds the configured TokenStore. Sessions are namespaced per
// API base URL.
func openStore(ctx context.Context, cfg config.Config) ([]auth.Option, error) {
	namespace := auth.StoreNamespace(cfg.GetBaseURL())

	switch cfg.StoreBackend {
	case config.StoreMemory:
		return []auth.Option{auth.WithStore(auth.NewMemoryStore())}, nil

	case config.StoreFile:
		path := cfg.StorePath
		if path == "" {
			var err error
			if path, err = filestore.DefaultPath(); err != nil {
				return nil, fmt.Errorf("resolve session file: %w", err)
			}
		}
		return []auth.Option{auth.WithStore(filestore.New(path, namespace))}, nil

	case config.StoreSQLite:
		path := cfg.StorePath
		if path == "" {
			def, err := filestore.DefaultPath()
			if err != nil {
				return nil, fmt.Errorf("resolve session database: %w", err)
			}
			path = filepath.Join(filepath.Dir(def), "session.db")
		}
		store, closeDB, err := repository.OpenSQLite(ctx, "file:"+path, namespace)
		if err != nil {
			return nil, err
		}
		return []auth.Option{
			auth.WithStore(store),
			auth.WithCloser(func() { _ = closeDB() }),
		}, nil

	case config.StoreRedis:
		client, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return []auth.Option{
			auth.WithStore(redisstore.New(client, namespace)),
			auth.WithCloser(func() { _ = client.Close() }),
		}, nil
	}

	return nil, fmt.Errorf("unknown store %q", cfg.StoreBackend)
}

// buildDecoder picks a verifying decoder when a key source is configured.
func buildDecoder(ctx context.Context, cfg config.Config, logger auth.Logger) ([]auth.Option, error) {
	switch {
	case cfg.JWKSURL != "":
		dec, err := auth.NewJWKSDecoder(ctx, cfg.JWKSURL, &http.Client{Timeout: cfg.GetRequestTimeout()}, logger)
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		return []auth.Option{auth.WithDecoder(dec), auth.WithCloser(dec.Close)}, nil
	case cfg.HMACKey != "":
		return []auth.Option{auth.WithDecoder(auth.NewHMACDecoder([]byte(cfg.HMACKey), logger))}, nil
	}
	return nil, nil
}
