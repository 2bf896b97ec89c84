package blob

import (
	"context"
	"fmt"

	"replacechain/internal/infra/blob/fs"
	memorystore "replacechain/internal/infra/blob/memory"
	infraS3 "replacechain/internal/infra/blob/s3"
)

// S3Config configures the S3 / MinIO backend.
type S3Config = infraS3.Config

// Config selects and configures a backend.
type Config struct {
	Driver string // fs|s3|memory, default fs
	FSRoot string // default ./replacechain-blobs
	S3     S3Config
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns an S3-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests returns an S3 store whose HTTP transport is an in-memory fake.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }

// S3MockTransport is the fake behind NewMockS3WithTransport.
type S3MockTransport = infraS3.MockTransport

// NewMockS3WithTransport is NewMockS3ForTests that also exposes the fake
// transport for failure injection.
func NewMockS3WithTransport() (Store, *S3MockTransport) {
	store, rt := infraS3.NewMockWithTransport()
	return store, rt
}
