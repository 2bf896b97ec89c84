package core

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"replacechain/internal/blob"
	"replacechain/internal/config"
	"replacechain/internal/infra/persistence/badger"
	"replacechain/internal/infra/persistence/blobstate"
	"replacechain/internal/infra/persistence/file"
	"replacechain/internal/infra/persistence/memory"
	"replacechain/internal/infra/persistence/sqlite"
	"replacechain/pkg/domain"
)

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Driver = driver
	cfg.Storage.FilePath = filepath.Join(dir, "state.json")
	cfg.Storage.SQLitePath = filepath.Join(dir, "state.db")
	cfg.Storage.BadgerPath = filepath.Join(dir, "badger")
	cfg.Blob.FSRoot = filepath.Join(dir, "blobs")
	return cfg
}

func TestOpenStateStoreDrivers(t *testing.T) {
	cases := []struct {
		driver string
		check  func(domain.StateStore) bool
	}{
		{"", func(s domain.StateStore) bool { _, ok := s.(*file.Store); return ok }},
		{"memory", func(s domain.StateStore) bool { _, ok := s.(*memory.Store); return ok }},
		{"file", func(s domain.StateStore) bool { _, ok := s.(*file.Store); return ok }},
		{"sqlite", func(s domain.StateStore) bool { _, ok := s.(*sqlite.Store); return ok }},
		{"badger", func(s domain.StateStore) bool { _, ok := s.(*badger.Store); return ok }},
		{"blob", func(s domain.StateStore) bool { _, ok := s.(*blobstate.Store); return ok }},
	}
	for _, tc := range cases {
		t.Run("driver="+tc.driver, func(t *testing.T) {
			store, err := OpenStateStore(context.Background(), testConfig(t, tc.driver), nil)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer func() { _ = store.Close() }()
			if !tc.check(store) {
				t.Fatalf("unexpected store type %T", store)
			}
			m, err := NewManager(context.Background(), store)
			if err != nil {
				t.Fatalf("new manager: %v", err)
			}
			mustAdd(t, m, "A", "B", "2020-01-01")
			if err := m.LoadState(context.Background()); err != nil {
				t.Fatalf("reload: %v", err)
			}
			expectLatest(t, m, "A", "B", "2020-01-01")
		})
	}
}

func TestOpenStateStoreUnknownDriver(t *testing.T) {
	cfg := testConfig(t, "mongo")
	if _, err := OpenStateStore(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestOpenStateStoreBlobErrors(t *testing.T) {
	cfg := testConfig(t, "blob")
	cfg.Blob.Driver = "s3"
	cfg.Blob.S3.Bucket = ""
	if _, err := OpenStateStore(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "open blob store") {
		t.Fatalf("expected blob open error, got %v", err)
	}
}

func TestOpenBlobStoreDrivers(t *testing.T) {
	cfg := testConfig(t, "blob")
	for _, driver := range []string{"fs", "memory"} {
		bc := cfg.Blob
		bc.Driver = driver
		store, err := OpenBlobStore(context.Background(), bc)
		if err != nil {
			t.Fatalf("open %s: %v", driver, err)
		}
		if string(store.Driver()) != driver {
			t.Fatalf("expected %s driver, got %s", driver, store.Driver())
		}
	}
	bc := cfg.Blob
	bc.Driver = "s3"
	bc.S3.Bucket = "snapshots"
	bc.S3.AccessKeyID = "AKIA"
	bc.S3.SecretAccessKey = "secret"
	store, err := OpenBlobStore(context.Background(), bc)
	if err != nil {
		t.Fatalf("open s3: %v", err)
	}
	if store.Driver() != blob.DriverS3 {
		t.Fatalf("expected s3 driver, got %s", store.Driver())
	}
}
