package feature

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/songgen/pkg/kv"
)

// Cache stores encoded examples in a kv.Store, msgpack-encoded under
// corpus:L<length>:M<bands>:<recording>.
type Cache struct {
	store  kv.Store
	prefix kv.Key
}

// NewCache returns a cache over store for windows of the given length and
// band count.
func NewCache(store kv.Store, windowLength, bands int) *Cache {
	return &Cache{
		store:  store,
		prefix: kv.Key{"corpus", "L" + strconv.Itoa(windowLength), "M" + strconv.Itoa(bands)},
	}
}

func (c *Cache) key(recording string) kv.Key {
	k := make(kv.Key, 0, len(c.prefix)+1)
	k = append(k, c.prefix...)
	return append(k, recording)
}

// Get returns the cached example of recording. The boolean is false when
// nothing is cached.
func (c *Cache) Get(ctx context.Context, recording string) (Example, bool, error) {
	data, err := c.store.Get(ctx, c.key(recording))
	if errors.Is(err, kv.ErrNotFound) {
		return Example{}, false, nil
	}
	if err != nil {
		return Example{}, false, err
	}
	var ex Example
	if err := msgpack.Unmarshal(data, &ex); err != nil {
		return Example{}, false, fmt.Errorf("feature: decode cached %s: %w", recording, err)
	}
	return ex, true, nil
}

// Put stores ex under its recording name.
func (c *Cache) Put(ctx context.Context, ex Example) error {
	data, err := msgpack.Marshal(&ex)
	if err != nil {
		return fmt.Errorf("feature: encode %s: %w", ex.Recording, err)
	}
	return c.store.Set(ctx, c.key(ex.Recording), data)
}

// Recordings lists the cached recording names in key order.
func (c *Cache) Recordings(ctx context.Context) ([]string, error) {
	var out []string
	for e, err := range c.store.List(ctx, c.prefix) {
		if err != nil {
			return nil, err
		}
		out = append(out, e.Key[len(e.Key)-1])
	}
	return out, nil
}

// Purge removes every cached example of this window shape.
func (c *Cache) Purge(ctx context.Context) error {
	var keys []kv.Key
	for e, err := range c.store.List(ctx, c.prefix) {
		if err != nil {
			return err
		}
		keys = append(keys, e.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.BatchDelete(ctx, keys)
}
