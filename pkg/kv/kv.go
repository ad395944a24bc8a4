// Package kv is the small key-value layer behind the encoded-corpus cache.
//
// Keys are hierarchical segment lists such as
// Key{"corpus", "L100", "M128", "song01"} and are stored as the segments
// joined by ':'. Segments may contain any byte; ':' and '%' are
// percent-escaped on the way in, so a recording named "a:b" never
// collides with the two-segment key {"a", "b"}.
//
// Two stores are provided: Badger for the on-disk cache and Memory for
// tests.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: not found")

// ErrEmptyKey is returned when a key has no segments.
var ErrEmptyKey = errors.New("kv: empty key")

// Key is a hierarchical path.
type Key []string

// String renders k unescaped, for logs.
func (k Key) String() string { return strings.Join(k, ":") }

// HasPrefix reports whether the leading segments of k equal prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// Entry is a stored pair returned by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the key-value interface the cache is written against.
type Store interface {
	// Get returns the value of key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key Key, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	// List yields the entries strictly below prefix in encoded-key order.
	// An empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]
	// BatchDelete removes keys in one write.
	BatchDelete(ctx context.Context, keys []Key) error
	Close() error
}

const separator = ':'

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")
var segmentUnescaper = strings.NewReplacer("%3A", ":", "%25", "%")

func encode(k Key) ([]byte, error) {
	if len(k) == 0 {
		return nil, ErrEmptyKey
	}
	var b strings.Builder
	for i, seg := range k {
		if i > 0 {
			b.WriteByte(separator)
		}
		b.WriteString(segmentEscaper.Replace(seg))
	}
	return []byte(b.String()), nil
}

// encodePrefix returns the byte prefix every key below prefix starts
// with. The trailing separator keeps {"a","b"} from matching "a:bc".
func encodePrefix(prefix Key) []byte {
	if len(prefix) == 0 {
		return nil
	}
	p, _ := encode(prefix)
	return append(p, separator)
}

func decode(b []byte) Key {
	parts := strings.Split(string(b), string(separator))
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = segmentUnescaper.Replace(p)
	}
	return k
}
