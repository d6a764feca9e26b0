// Package app wires configuration into the metadata store, object storage
// and file service shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eyueldk/edkstack-files/internal/config"
	"github.com/eyueldk/edkstack-files/internal/db"
	"github.com/eyueldk/edkstack-files/internal/file"
	"github.com/eyueldk/edkstack-files/internal/sqlite"
	"github.com/eyueldk/edkstack-files/internal/storage"
	"github.com/eyueldk/edkstack-files/internal/sweep"
)

// App holds the wired dependencies.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Store    file.MetadataStore
	Objects  storage.Storage
	Policies file.Policies
	Files    *file.Service

	closers []func()
}

// Options control bootstrap side effects.
type Options struct {
	// Migrate applies pending PostgreSQL migrations before use.
	Migrate bool
}

// New connects to the metadata store and object storage and builds the file
// service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log}

	policies, err := loadPolicies(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Policies = policies

	if err := a.openMetadata(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}

	objects, err := openStorage(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("object storage init failed: %w", err)
	}
	a.Objects = objects

	a.Files = file.NewService(a.Store, a.Objects, file.Options{
		KeyPrefix:    cfg.KeyPrefix,
		PresignTTL:   cfg.PresignTTL,
		URLCacheSize: cfg.URLCacheSize,
		URLCacheTTL:  cfg.URLCacheTTL,
	}, log)
	return a, nil
}

// Sweeper returns an orphan sweeper over the service's key prefix.
func (a *App) Sweeper(dryRun bool) *sweep.Sweeper {
	return sweep.New(a.Objects, a.Store, sweep.Options{
		Prefix:      a.Files.KeyPrefix(),
		GracePeriod: a.Config.SweepGracePeriod,
		DryRun:      dryRun,
	}, a.Log)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openMetadata(ctx context.Context, opts Options) error {
	switch a.Config.MetadataDriver {
	case "sqlite":
		store, err := sqlite.Open(a.Config.SQLitePath, a.Log)
		if err != nil {
			return err
		}
		a.Store = store
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.Log.Warn("close sqlite", zap.Error(err))
			}
		})
		return nil
	default:
		if opts.Migrate {
			if err := db.Migrate(a.Config.DatabaseURL, a.Log); err != nil {
				return fmt.Errorf("database migration failed: %w", err)
			}
		}
		pool, err := db.Connect(ctx, a.Config.DatabaseURL, a.Log)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		a.Store = file.NewRepository(pool)
		a.closers = append(a.closers, pool.Close)
		return nil
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:       s3Endpoint(cfg),
			Region:         cfg.StorageRegion,
			AccessKey:      cfg.StorageAccessKey,
			SecretKey:      cfg.StorageSecretKey,
			Bucket:         cfg.StorageBucket,
			ForcePathStyle: cfg.StorageEndpoint != "",
			PublicBase:     cfg.StoragePublicBase,
		})
	default:
		return storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:     cfg.StorageEndpoint,
			AccessKey:    cfg.StorageAccessKey,
			SecretKey:    cfg.StorageSecretKey,
			Bucket:       cfg.StorageBucket,
			Region:       cfg.StorageRegion,
			UseSSL:       cfg.StorageUseSSL,
			PublicBase:   cfg.StoragePublicBase,
			PublicPrefix: strings.Trim(cfg.KeyPrefix, "/") + "/" + string(file.VisibilityPublic) + "/",
		}, log)
	}
}

// s3Endpoint turns a bare host:port into a URL; the AWS SDK needs a scheme.
func s3Endpoint(cfg *config.Config) string {
	ep := cfg.StorageEndpoint
	if ep == "" || strings.Contains(ep, "://") {
		return ep
	}
	if cfg.StorageUseSSL {
		return "https://" + ep
	}
	return "http://" + ep
}

func loadPolicies(cfg *config.Config, log *zap.Logger) (file.Policies, error) {
	if cfg.PolicyFile == "" {
		p := file.DefaultPolicies()
		log.Info("using built-in upload policies", zap.Strings("purposes", p.Purposes()))
		return p, nil
	}
	p, err := file.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load upload policies: %w", err)
	}
	log.Info("loaded upload policies",
		zap.String("path", cfg.PolicyFile),
		zap.Strings("purposes", p.Purposes()),
	)
	return p, nil
}
