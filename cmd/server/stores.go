package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/awsconf"
	"github.com/and161185/filekeeper/internal/config"
	"github.com/and161185/filekeeper/internal/migrate"
	"github.com/and161185/filekeeper/internal/objectstore/fs"
	"github.com/and161185/filekeeper/internal/objectstore/s3"
	"github.com/and161185/filekeeper/internal/repository"
	"github.com/and161185/filekeeper/internal/repository/badger"
	"github.com/and161185/filekeeper/internal/repository/dynamo"
	"github.com/and161185/filekeeper/internal/repository/postgres"
)

// stores holds the configured backends and their cleanup hooks.
type stores struct {
	meta    repository.MetadataRepository
	objects repository.ObjectStore
	closers []func()
}

// Close releases backends in reverse order of opening.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	st := &stores{}
	if err := st.openMetadata(ctx, cfg, log.Named("metadata")); err != nil {
		st.Close()
		return nil, err
	}
	if err := st.openObjects(ctx, cfg, log.Named("objects")); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func awsOptions(cfg *config.Config) awsconf.Options {
	return awsconf.Options{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint}
}

func (st *stores) openMetadata(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	switch cfg.MetadataBackend {
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.DSN, cfg.TableName, log); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		st.closers = append(st.closers, db.Close)
		st.meta = postgres.NewEntryRepo(db, cfg.TableName, log)

	case config.BackendDynamoDB:
		store, err := dynamo.NewFromConfig(ctx, cfg.TableName, awsOptions(cfg), log)
		if err != nil {
			return fmt.Errorf("dynamodb: %w", err)
		}
		st.meta = store

	case config.BackendBadger:
		store, err := badger.Open(cfg.BadgerDir, log)
		if err != nil {
			return err
		}
		st.closers = append(st.closers, func() {
			if err := store.Close(); err != nil {
				log.Error("close badger", zap.Error(err))
			}
		})
		st.meta = store

	default:
		return fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
	}
	return nil
}

func (st *stores) openObjects(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	switch cfg.ObjectBackend {
	case config.BackendS3:
		store, err := s3.NewFromConfig(ctx, s3.Config{
			Bucket:         cfg.BucketName,
			Endpoint:       cfg.AWSEndpoint,
			ForcePathStyle: cfg.S3ForcePathStyle,
		}, awsOptions(cfg), log)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		st.objects = store

	case config.BackendFS:
		store, err := fs.New(cfg.StorageRoot, cfg.BucketName, log)
		if err != nil {
			return err
		}
		st.objects = store

	default:
		return fmt.Errorf("unknown object backend %q", cfg.ObjectBackend)
	}
	return nil
}
