package s3

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"replacechain/internal/blob/core"
)

func TestDecodeChunked(t *testing.T) {
	payload := []byte("3\r\nabc\r\n2;chunk-signature=x\r\nde\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")
	out, ok := decodeChunked(payload)
	if !ok || string(out) != "abcde" {
		t.Fatalf("unexpected decode %q %v", out, ok)
	}
	if _, ok := decodeChunked([]byte("zz\r\n")); ok {
		t.Fatalf("expected invalid size to fail")
	}
	if _, ok := decodeChunked([]byte("5\r\nab")); ok {
		t.Fatalf("expected truncated chunk to fail")
	}
}

func TestPutFailureSurfaces(t *testing.T) {
	store, rt := NewMockWithTransport()
	rt.FailPut = true
	_, err := store.Put(context.Background(), "k", bytes.NewReader([]byte("v")), core.PutOptions{})
	if err == nil || errors.Is(err, core.ErrExists) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if len(rt.Keys()) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	s, err := New(context.Background(), Config{Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret", Endpoint: "http://minio:9000", PathStyle: true})
	if err != nil {
		t.Fatalf("new with static credentials: %v", err)
	}
	if s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
}

func TestStatusCode(t *testing.T) {
	if statusCode(errors.New("plain")) != 0 {
		t.Fatalf("plain errors carry no status")
	}
}
