package kv_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/haivivi/songgen/pkg/kv"
)

// stores returns one fresh instance of every Store implementation.
func stores(t *testing.T) map[string]kv.Store {
	t.Helper()
	b, err := kv.OpenBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	m := kv.NewMemory()
	t.Cleanup(func() {
		b.Close()
		m.Close()
	})
	return map[string]kv.Store{"memory": m, "badger": b}
}

func keys(t *testing.T, s kv.Store, prefix kv.Key) []string {
	t.Helper()
	var out []string
	for e, err := range s.List(context.Background(), prefix) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		out = append(out, e.Key.String())
	}
	return out
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := kv.Key{"corpus", "L100", "song01"}
			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get missing = %v, want ErrNotFound", err)
			}
			if err := s.Set(ctx, key, []byte("one")); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, key, []byte("two")); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, key)
			if err != nil || string(got) != "two" {
				t.Fatalf("Get = %q, %v; want two", got, err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get after delete = %v", err)
			}
			if err := s.Delete(ctx, kv.Key{"never", "set"}); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
		})
	}
}

func TestListPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []kv.Key{
				{"corpus", "L100", "b"},
				{"corpus", "L100", "a"},
				{"corpus", "L1000", "c"},
				{"corpus", "L50", "d"},
				{"other"},
			} {
				if err := s.Set(ctx, k, []byte(k.String())); err != nil {
					t.Fatal(err)
				}
			}
			got := keys(t, s, kv.Key{"corpus", "L100"})
			if want := []string{"corpus:L100:a", "corpus:L100:b"}; !slices.Equal(got, want) {
				t.Errorf("List = %v, want %v", got, want)
			}
			if n := len(keys(t, s, nil)); n != 5 {
				t.Errorf("List(nil) returned %d entries, want 5", n)
			}
		})
	}
}

func TestListStopsEarly(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, r := range []string{"a", "b", "c"} {
				s.Set(ctx, kv.Key{"p", r}, nil)
			}
			n := 0
			for range s.List(ctx, kv.Key{"p"}) {
				n++
				break
			}
			if n != 1 {
				t.Fatalf("iterated %d times after break", n)
			}
		})
	}
}

func TestSeparatorInSegment(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			joined := kv.Key{"p", "a:b"}
			split := kv.Key{"p", "a", "b"}
			s.Set(ctx, joined, []byte("joined"))
			s.Set(ctx, split, []byte("split"))

			got, err := s.Get(ctx, joined)
			if err != nil || string(got) != "joined" {
				t.Fatalf("Get(%v) = %q, %v", joined, got, err)
			}
			var listed []kv.Key
			for e, err := range s.List(ctx, kv.Key{"p"}) {
				if err != nil {
					t.Fatal(err)
				}
				listed = append(listed, e.Key)
			}
			if len(listed) != 2 {
				t.Fatalf("listed %v", listed)
			}
			found := false
			for _, k := range listed {
				if slices.Equal(k, joined) {
					found = true
				}
			}
			if !found {
				t.Errorf("List did not round-trip %q, got %v", joined, listed)
			}
			// Only the escaped segment sits below {"p", "a:b"}.
			if got := keys(t, s, kv.Key{"p", "a"}); len(got) != 1 {
				t.Errorf("List({p a}) = %v, want only the split key", got)
			}
		})
	}
}

func TestBatchDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, r := range []string{"a", "b", "c"} {
				s.Set(ctx, kv.Key{"p", r}, []byte(r))
			}
			if err := s.BatchDelete(ctx, []kv.Key{{"p", "a"}, {"p", "c"}, {"p", "zz"}}); err != nil {
				t.Fatal(err)
			}
			if got := keys(t, s, kv.Key{"p"}); !slices.Equal(got, []string{"p:b"}) {
				t.Errorf("after BatchDelete = %v", got)
			}
		})
	}
}

func TestEmptyKey(t *testing.T) {
	for name, s := range stores(t) {
		if err := s.Set(context.Background(), nil, []byte("x")); !errors.Is(err, kv.ErrEmptyKey) {
			t.Errorf("%s: Set(nil) = %v, want ErrEmptyKey", name, err)
		}
	}
}

func TestKeyHasPrefix(t *testing.T) {
	k := kv.Key{"corpus", "L100", "song"}
	if !k.HasPrefix(kv.Key{"corpus", "L100"}) || !k.HasPrefix(nil) {
		t.Error("HasPrefix false for a real prefix")
	}
	if k.HasPrefix(kv.Key{"corpus", "L10"}) || k.HasPrefix(kv.Key{"corpus", "L100", "song", "x"}) {
		t.Error("HasPrefix true for a non-prefix")
	}
}

func TestOpenBadgerRequiresDir(t *testing.T) {
	if _, err := kv.OpenBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}

func TestBadgerPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := kv.OpenBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, kv.Key{"k"}, []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	b, err = kv.OpenBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	got, err := b.Get(ctx, kv.Key{"k"})
	if err != nil || string(got) != "v" {
		t.Fatalf("Get after reopen = %q, %v", got, err)
	}
}
