package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"

	"reelforge/internal/services"
)

// NATSBackend stores blobs in a JetStream object store bucket.
type NATSBackend struct {
	conn   *nats.Conn
	bucket string
	store  nats.ObjectStore
	owned  bool
}

// OpenNATS connects to url and binds (or creates) bucket with the given TTL.
// The returned backend owns the connection.
func OpenNATS(url, bucket string, ttl time.Duration) (*NATSBackend, error) {
	conn, err := nats.Connect(url, nats.Name("reelforge"))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "artifacts", "nats connect", url, err)
	}
	backend, err := NewNATSBackend(conn, bucket, ttl)
	if err != nil {
		conn.Close()
		return nil, err
	}
	backend.owned = true
	return backend, nil
}

// NewNATSBackend binds to an existing bucket or creates it.
func NewNATSBackend(conn *nats.Conn, bucket string, ttl time.Duration) (*NATSBackend, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	store, err := js.ObjectStore(bucket)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) && !errors.Is(err, nats.ErrBucketNotFound) {
			return nil, fmt.Errorf("bind object store bucket %q: %w", bucket, err)
		}
		store, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "reelforge run artifacts",
			TTL:         ttl,
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		if err != nil {
			return nil, fmt.Errorf("create object store bucket %q: %w", bucket, err)
		}
	}
	return &NATSBackend{conn: conn, bucket: bucket, store: store}, nil
}

func (b *NATSBackend) Name() string { return "nats" }

func (b *NATSBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("put object %q to bucket %q: %w", key, b.bucket, err)
	}
	return nil
}

func (b *NATSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.store.Get(key, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get object %q from bucket %q: %w", key, b.bucket, err)
	}
	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read object %q: %w", key, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("close object %q: %w", key, closeErr)
	}
	return data, nil
}

func (b *NATSBackend) Delete(_ context.Context, key string) error {
	if err := b.store.Delete(key); err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (b *NATSBackend) List(ctx context.Context) ([]Object, error) {
	infos, err := b.store.List(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list bucket %q: %w", b.bucket, err)
	}
	objects := make([]Object, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		objects = append(objects, Object{
			Key:     info.Name,
			Size:    int64(info.Size),
			ModTime: info.ModTime,
		})
	}
	return objects, nil
}

// Ping verifies the connection is usable.
func (b *NATSBackend) Ping() error {
	if b.conn == nil || !b.conn.IsConnected() {
		return errors.New("nats connection closed")
	}
	return b.conn.FlushTimeout(2 * time.Second)
}

// Close drains the connection when the backend opened it.
func (b *NATSBackend) Close() error {
	if b.owned && b.conn != nil {
		return b.conn.Drain()
	}
	return nil
}
