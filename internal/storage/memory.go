package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ Bucket = (*MemoryBucket)(nil)

type memoryObject struct {
	data    []byte
	modTime time.Time
}

// MemoryBucket keeps blobs in process memory. Used in tests and local runs.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (b *MemoryBucket) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memoryObject{data: append([]byte(nil), data...), modTime: b.now()}

	return nil
}

func (b *MemoryBucket) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}

	return append([]byte(nil), obj.data...), nil
}

func (b *MemoryBucket) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(b.objects, key)

	return nil
}

func (b *MemoryBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ObjectInfo, 0)
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out, nil
}

// Len reports the number of stored objects.
func (b *MemoryBucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Tamper overwrites a stored object in place, keeping its timestamp.
func (b *MemoryBucket) Tamper(key string, fn func([]byte) []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return false
	}
	obj.data = fn(append([]byte(nil), obj.data...))
	b.objects[key] = obj

	return true
}

// Touch sets the modification time of key.
func (b *MemoryBucket) Touch(key string, t time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return false
	}
	obj.modTime = t
	b.objects[key] = obj

	return true
}
