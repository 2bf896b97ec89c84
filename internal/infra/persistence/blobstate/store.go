// Package blobstate persists the replacement state as generation-numbered
// snapshot objects in a blob store (filesystem, memory or S3).
package blobstate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"replacechain/internal/blob"
	"replacechain/pkg/domain"
)

var _ domain.StateStore = (*Store)(nil)

const (
	// DefaultPrefix is the key prefix snapshots are written under.
	DefaultPrefix = "state/"
	// DefaultRetain is how many generations survive pruning.
	DefaultRetain = 5

	generationDigits = 20
)

// Store writes every Save as a new object `<prefix><generation>.json` and
// loads the highest generation. Objects are never overwritten, so a failed
// Save leaves earlier generations readable.
type Store struct {
	blobs  blob.Store
	prefix string
	retain int
	closer io.Closer
}

// Option customises a Store.
type Option func(*Store)

// WithPrefix changes the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			if !strings.HasSuffix(prefix, "/") {
				prefix += "/"
			}
			s.prefix = prefix
		}
	}
}

// WithRetain changes how many generations are kept. Values below one keep
// the default.
func WithRetain(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retain = n
		}
	}
}

// New returns a store over blobs.
func New(blobs blob.Store, opts ...Option) *Store {
	s := &Store{blobs: blobs, prefix: DefaultPrefix, retain: DefaultRetain}
	for _, opt := range opts {
		opt(s)
	}
	if c, ok := blobs.(io.Closer); ok {
		s.closer = c
	}
	return s
}

type generation struct {
	key string
	n   uint64
}

func (s *Store) generations(ctx context.Context) ([]generation, error) {
	infos, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	gens := make([]generation, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, s.prefix)
		digits, ok := strings.CutSuffix(name, ".json")
		if !ok || len(digits) != generationDigits {
			continue
		}
		n, err := strconv.ParseUint(digits, 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, generation{key: info.Key, n: n})
	}
	// fixed-width keys make List order generation order
	return gens, nil
}

func (s *Store) key(n uint64) string {
	return fmt.Sprintf("%s%020d.json", s.prefix, n)
}

func (s *Store) Load(ctx context.Context) (domain.State, bool, error) {
	gens, err := s.generations(ctx)
	if err != nil {
		return domain.State{}, false, err
	}
	if len(gens) == 0 {
		return domain.State{}, false, nil
	}
	latest := gens[len(gens)-1]
	_, rc, err := s.blobs.Get(ctx, latest.key)
	if err != nil {
		return domain.State{}, false, fmt.Errorf("get %s: %w", latest.key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.State{}, false, fmt.Errorf("read %s: %w", latest.key, err)
	}
	state, err := domain.DecodeState(data)
	if err != nil {
		return domain.State{}, false, err
	}
	return state, true, nil
}

// Save writes the next generation and then prunes generations beyond the
// retention count. Pruning is best effort: a failed delete leaves an extra
// object that the next Save retries.
func (s *Store) Save(ctx context.Context, state domain.State) error {
	data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}
	gens, err := s.generations(ctx)
	if err != nil {
		return err
	}
	next := uint64(1)
	if len(gens) > 0 {
		next = gens[len(gens)-1].n + 1
	}
	key := s.key(next)
	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"generation": strconv.FormatUint(next, 10), "products": strconv.Itoa(len(state.Products))},
	}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	gens = append(gens, generation{key: key, n: next})
	if excess := len(gens) - s.retain; excess > 0 {
		for _, g := range gens[:excess] {
			_, _ = s.blobs.Delete(ctx, g.key)
		}
	}
	return nil
}

func (s *Store) Driver() domain.StorageDriver { return domain.StorageBlob }

func (s *Store) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
