package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePDF() []byte {
	return append([]byte("%PDF-1.3\n"), bytes.Repeat([]byte("0123456789"), 20)...)
}

// flaky fails the first n calls of every operation.
type flaky struct {
	Bucket
	failures int
	calls    int
}

func (f *flaky) Put(ctx context.Context, key string, data []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return f.Bucket.Put(ctx, key, data)
}

func (f *flaky) Get(ctx context.Context, key string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.Bucket.Get(ctx, key)
}

func newTestAdapter(b Bucket) *Adapter {
	a := NewAdapter(b, Config{Delay: time.Millisecond})
	a.now = func() time.Time { return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC) }
	return a
}

func TestAdapter_RoundTrip(t *testing.T) {
	bucket := NewMemoryBucket()
	a := newTestAdapter(bucket)
	data := samplePDF()

	obj, err := a.Upload(context.Background(), data, "invoice_42_1709632800000.pdf", "invoice")
	require.NoError(t, err)
	assert.Equal(t, "invoice/2024/03/invoice_42_1709632800000.pdf", obj.Path)
	assert.Equal(t, Checksum(data), obj.Checksum)
	assert.Equal(t, int64(len(data)), obj.Size)

	got, err := a.Download(context.Background(), obj.Path, obj.Checksum)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	objects, err := a.List(context.Background(), "invoice")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, obj.Path, objects[0].Key)

	objects, err = a.List(context.Background(), "order")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestAdapter_DetectsCorruption(t *testing.T) {
	bucket := NewMemoryBucket()
	a := newTestAdapter(bucket)

	obj, err := a.Upload(context.Background(), samplePDF(), "a.pdf", "order")
	require.NoError(t, err)

	require.True(t, bucket.Tamper(obj.Path, func(b []byte) []byte {
		b[len(b)-1] ^= 0x01
		return b
	}))

	_, err = a.Download(context.Background(), obj.Path, obj.Checksum)
	assert.ErrorIs(t, err, ErrCorrupted)

	// without an expected checksum only the format is checked
	_, err = a.Download(context.Background(), obj.Path, "")
	assert.NoError(t, err)
}

func TestAdapter_Validate(t *testing.T) {
	a := newTestAdapter(NewMemoryBucket())

	_, err := a.Upload(context.Background(), nil, "a.pdf", "order")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = a.Upload(context.Background(), []byte("%PDF-1.3 tiny"), "a.pdf", "order")
	assert.ErrorIs(t, err, ErrTooSmall)

	_, err = a.Upload(context.Background(), bytes.Repeat([]byte("x"), 128), "a.pdf", "order")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestAdapter_Retries(t *testing.T) {
	t.Run("recovers within the attempt budget", func(t *testing.T) {
		b := &flaky{Bucket: NewMemoryBucket(), failures: 2}
		a := newTestAdapter(b)

		_, err := a.Upload(context.Background(), samplePDF(), "a.pdf", "order")
		require.NoError(t, err)
		assert.Equal(t, 3, b.calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		b := &flaky{Bucket: NewMemoryBucket(), failures: 10}
		a := newTestAdapter(b)

		_, err := a.Upload(context.Background(), samplePDF(), "a.pdf", "order")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, DefaultAttempts, b.calls)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		b := &flaky{Bucket: NewMemoryBucket()}
		a := newTestAdapter(b)

		_, err := a.Download(context.Background(), "order/2024/03/missing.pdf", "")
		assert.ErrorIs(t, err, ErrObjectNotFound)
		assert.Equal(t, 1, b.calls)
	})
}

func TestFSBucket(t *testing.T) {
	b, err := NewFSBucket(t.TempDir())
	require.NoError(t, err)
	a := newTestAdapter(b)

	obj, err := a.Upload(context.Background(), samplePDF(), "c.pdf", "contract")
	require.NoError(t, err)

	got, err := a.Download(context.Background(), obj.Path, obj.Checksum)
	require.NoError(t, err)
	assert.Equal(t, samplePDF(), got)

	objects, err := a.List(context.Background(), "contract")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "contract/2024/03/c.pdf", objects[0].Key)

	require.NoError(t, a.Delete(context.Background(), obj.Path))
	assert.ErrorIs(t, a.Delete(context.Background(), obj.Path), ErrObjectNotFound)

	_, err = b.Get(context.Background(), "../escape")
	assert.Error(t, err)
}

func TestFSBucket_ConcurrentPuts(t *testing.T) {
	b, err := NewFSBucket(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	const n = 8
	payloads := make([][]byte, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		payloads[i] = bytes.Repeat([]byte(fmt.Sprintf("writer-%d|", i)), 4096)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, b.Put(ctx, "order/2024/03/same.pdf", payloads[i]))
		}(i)
	}
	wg.Wait()

	got, err := b.Get(ctx, "order/2024/03/same.pdf")
	require.NoError(t, err)
	assert.Contains(t, payloads, got)

	objects, err := b.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "order/2024/03/same.pdf", objects[0].Key)
}
