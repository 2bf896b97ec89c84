package core

import (
	"context"
	"fmt"
	"log/slog"

	"replacechain/internal/blob"
	"replacechain/internal/config"
	"replacechain/internal/infra/persistence/badger"
	"replacechain/internal/infra/persistence/blobstate"
	"replacechain/internal/infra/persistence/file"
	"replacechain/internal/infra/persistence/memory"
	"replacechain/internal/infra/persistence/postgres"
	"replacechain/internal/infra/persistence/sqlite"
	"replacechain/pkg/domain"
)

// OpenStateStore selects a backend from cfg.Storage. Defaults to the JSON
// file backend when the driver is unset.
//
//	memory   - process memory, nothing survives exit
//	file     - storage.file_path
//	sqlite   - storage.sqlite_path
//	postgres - storage.postgres_dsn
//	badger   - storage.badger_path
//	blob     - generation objects in the blob store described by cfg.Blob
func OpenStateStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (domain.StateStore, error) {
	driver := cfg.Storage.Driver
	if driver == "" {
		driver = string(domain.StorageFile)
	}
	switch domain.StorageDriver(driver) {
	case domain.StorageMemory:
		return memory.NewStore(), nil
	case domain.StorageFile:
		return file.NewStore(cfg.Storage.FilePath)
	case domain.StorageSQLite:
		return sqlite.NewStore(ctx, cfg.Storage.SQLitePath)
	case domain.StoragePostgres:
		return postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
	case domain.StorageBadger:
		return badger.Open(badger.Config{Path: cfg.Storage.BadgerPath, SyncWrites: true, Logger: logger})
	case domain.StorageBlob:
		blobs, err := OpenBlobStore(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}
		return blobstate.New(blobs,
			blobstate.WithPrefix(cfg.Storage.BlobPrefix),
			blobstate.WithRetain(cfg.Storage.BlobRetain),
		), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenBlobStore opens the object store described by cfg.
func OpenBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	store, err := blob.Open(ctx, blob.Config{
		Driver: cfg.Driver,
		FSRoot: cfg.FSRoot,
		S3: blob.S3Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
			PathStyle:       cfg.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return store, nil
}
