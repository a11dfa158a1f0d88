package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/docgen/internal/compress"
	"github.com/emrgen/docgen/internal/storage"
)

var (
	ErrMirrorMiss    = errors.New("preview not mirrored")
	ErrMirrorPayload = errors.New("mirrored preview has no timestamp")
)

// stampLen is the size of the store time header written before every payload.
const stampLen = 8

func stamp(at time.Time, payload []byte) []byte {
	out := make([]byte, stampLen, stampLen+len(payload))
	binary.BigEndian.PutUint64(out, uint64(at.UnixMilli()))
	return append(out, payload...)
}

func unstamp(data []byte) (time.Time, []byte, error) {
	if len(data) < stampLen {
		return time.Time{}, nil, ErrMirrorPayload
	}
	at := time.UnixMilli(int64(binary.BigEndian.Uint64(data[:stampLen])))

	return at, data[stampLen:], nil
}

// MirrorEntry is one mirrored preview.
type MirrorEntry struct {
	Key      string
	StoredAt time.Time
}

// Mirror is a durable, non-authoritative copy of the preview cache.
type Mirror interface {
	// Load returns the preview with the time it was stored, or ErrMirrorMiss
	// when key is absent.
	Load(ctx context.Context, key string) ([]byte, time.Time, error)
	Store(ctx context.Context, key string, data []byte) error
	Entries(ctx context.Context) ([]MirrorEntry, error)
	Remove(ctx context.Context, key string) error
}

// BlobMirrorPrefix namespaces preview blobs inside the document bucket.
const BlobMirrorPrefix = "preview-cache/"

var _ Mirror = (*BlobMirror)(nil)

// BlobMirror keeps previews in an object bucket.
type BlobMirror struct {
	bucket  storage.Bucket
	encoder compress.Compress
	now     func() time.Time
}

func NewBlobMirror(bucket storage.Bucket, encoder compress.Compress) *BlobMirror {
	if encoder == nil {
		encoder = compress.NewNop()
	}

	return &BlobMirror{bucket: bucket, encoder: encoder, now: time.Now}
}

func (m *BlobMirror) Load(ctx context.Context, key string) ([]byte, time.Time, error) {
	data, err := m.bucket.Get(ctx, BlobMirrorPrefix+key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, time.Time{}, ErrMirrorMiss
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	storedAt, payload, err := unstamp(data)
	if err != nil {
		return nil, time.Time{}, err
	}
	decoded, err := m.encoder.Decode(payload)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("decode mirrored preview: %w", err)
	}

	return decoded, storedAt, nil
}

func (m *BlobMirror) Store(ctx context.Context, key string, data []byte) error {
	encoded, err := m.encoder.Encode(data)
	if err != nil {
		return err
	}

	return m.bucket.Put(ctx, BlobMirrorPrefix+key, stamp(m.now(), encoded))
}

func (m *BlobMirror) Entries(ctx context.Context) ([]MirrorEntry, error) {
	objects, err := m.bucket.List(ctx, BlobMirrorPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]MirrorEntry, 0, len(objects))
	for _, obj := range objects {
		out = append(out, MirrorEntry{
			Key:      strings.TrimPrefix(obj.Key, BlobMirrorPrefix),
			StoredAt: obj.LastModified,
		})
	}

	return out, nil
}

func (m *BlobMirror) Remove(ctx context.Context, key string) error {
	err := m.bucket.Delete(ctx, BlobMirrorPrefix+key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}

	return err
}
