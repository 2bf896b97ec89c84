package domain

import "context"

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageFile     StorageDriver = "file"     // single JSON snapshot file (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded badger key-value store
	StorageBlob     StorageDriver = "blob"     // generation-numbered objects in a blob store
)

// StateStore is a minimal abstraction over durable backends holding the
// replacement state. Backends never merge: Save overwrites the whole record and
// Load returns exactly the last record saved.
type StateStore interface {
	// Load returns the stored record. The boolean is false when nothing has
	// been stored yet; that is not an error.
	Load(ctx context.Context) (State, bool, error)
	// Save replaces the stored record. Implementations encode fully in memory
	// before touching durable storage so a failed Save leaves the previous
	// record intact.
	Save(ctx context.Context, state State) error
	Driver() StorageDriver
	Close() error
}
