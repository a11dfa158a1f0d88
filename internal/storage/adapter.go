// Package storage persists rendered documents in an object bucket, validating
// every blob on the way in and out and retrying transient bucket failures.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/emrgen/docgen/internal/metrics"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmpty        = errors.New("document is empty")
	ErrTooSmall     = errors.New("document is below the minimum size")
	ErrBadSignature = errors.New("document does not carry a PDF signature")
	ErrCorrupted    = errors.New("document checksum mismatch")
)

var pdfMagic = []byte("%PDF-")

const (
	DefaultMinSize  = 64
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
)

type Config struct {
	MinSize  int
	Attempts uint64
	Delay    time.Duration
}

// Object is the outcome of an upload.
type Object struct {
	Path     string
	Checksum string
	Size     int64
}

// Adapter is the document facing side of a Bucket.
type Adapter struct {
	bucket   Bucket
	minSize  int
	attempts uint64
	delay    time.Duration
	now      func() time.Time
}

func NewAdapter(bucket Bucket, cfg Config) *Adapter {
	a := &Adapter{
		bucket:   bucket,
		minSize:  cfg.MinSize,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		now:      time.Now,
	}
	if a.minSize <= 0 {
		a.minSize = DefaultMinSize
	}
	if a.attempts == 0 {
		a.attempts = DefaultAttempts
	}
	if a.delay <= 0 {
		a.delay = DefaultDelay
	}

	return a
}

// Bucket exposes the underlying bucket for auxiliary namespaces such as the preview mirror.
func (a *Adapter) Bucket() Bucket {
	return a.bucket
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Validate rejects buffers that cannot be a PDF document.
func (a *Adapter) Validate(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) < a.minSize {
		return fmt.Errorf("%w: %d < %d bytes", ErrTooSmall, len(data), a.minSize)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return ErrBadSignature
	}

	return nil
}

// ObjectPath lays out name as {category}/{yyyy}/{mm}/{name}.
func ObjectPath(category, name string, at time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s", category, at.Year(), int(at.Month()), path.Base(name))
}

func (a *Adapter) Upload(ctx context.Context, data []byte, name, category string) (*Object, error) {
	if err := a.Validate(data); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(category) == "" {
		return nil, errors.New("object name and category are required")
	}

	key := ObjectPath(category, name, a.now().UTC())
	err := a.do(ctx, "upload", func(ctx context.Context) error {
		return a.bucket.Put(ctx, key, data)
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	logrus.WithFields(logrus.Fields{"path": key, "size": len(data)}).Debug("document uploaded")

	return &Object{Path: key, Checksum: Checksum(data), Size: int64(len(data))}, nil
}

// Download fetches path and verifies it. A non-empty expectedChecksum must match.
func (a *Adapter) Download(ctx context.Context, key, expectedChecksum string) ([]byte, error) {
	var data []byte
	err := a.do(ctx, "download", func(ctx context.Context) error {
		var err error
		data, err = a.bucket.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}

	if err := a.Validate(data); err != nil {
		metrics.StorageFailures.WithLabelValues("download", "invalid").Inc()
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	if expectedChecksum != "" && !strings.EqualFold(Checksum(data), expectedChecksum) {
		metrics.StorageFailures.WithLabelValues("download", "corrupted").Inc()
		return nil, fmt.Errorf("download %s: %w", key, ErrCorrupted)
	}

	return data, nil
}

// Delete removes key. ErrObjectNotFound is returned unretried when the bucket reports it.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	err := a.do(ctx, "delete", func(ctx context.Context) error {
		return a.bucket.Delete(ctx, key)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// List returns the objects of category, or every object when category is empty.
func (a *Adapter) List(ctx context.Context, category string) ([]ObjectInfo, error) {
	prefix := ""
	if category != "" {
		prefix = strings.TrimSuffix(category, "/") + "/"
	}

	var out []ObjectInfo
	err := a.do(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = a.bucket.List(ctx, prefix)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	return out, nil
}

// do runs fn with a fixed number of attempts and a constant delay between them.
// Not-found and context errors end the loop immediately.
func (a *Adapter) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(a.attempts-1, retry.NewConstant(a.delay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.StorageRetries.WithLabelValues(op).Inc()
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrObjectNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		logrus.WithFields(logrus.Fields{"op": op, "attempt": attempt}).Warnf("storage operation failed: %v", err)
		return retry.RetryableError(err)
	})
	if err != nil && !errors.Is(err, ErrObjectNotFound) {
		metrics.StorageFailures.WithLabelValues(op, "transient").Inc()
	}

	return err
}
