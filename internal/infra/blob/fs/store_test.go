package fs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"replacechain/internal/blob/core"
)

func TestSanitizeKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "  ", "/abs", "../up", "a/../../b", "x.meta"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	if got, err := sanitizeKey("state/./001.json"); err != nil || got != "state/001.json" {
		t.Fatalf("unexpected clean key %q %v", got, err)
	}
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(context.Background(), "exports/a.csv", bytes.NewReader([]byte("a,b\n")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, "exports"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected data file and sidecar only, got %d entries", len(entries))
	}
}

func TestListSkipsObjectsWithoutSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "orphan"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	list, err := s.List(context.Background(), "")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected orphan to be ignored: %v %+v", err, list)
	}
}

func TestCorruptSidecarIsReported(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root)
	if err := os.WriteFile(filepath.Join(root, "k.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Head(context.Background(), "k"); err == nil {
		t.Fatalf("expected decode error")
	}
}
