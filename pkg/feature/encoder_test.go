package feature

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/songgen/pkg/corpus"
	"github.com/haivivi/songgen/pkg/kv"
	"github.com/haivivi/songgen/pkg/songerr"
	"github.com/haivivi/songgen/pkg/track"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestCorpus(t *testing.T) corpus.Layout {
	t.Helper()
	root := t.TempDir()
	l := corpus.Layout{
		MIDIDir:        filepath.Join(root, "midi"),
		SpectrogramDir: filepath.Join(root, "spectrograms"),
	}
	for _, dir := range []string{l.MIDIDir, l.SpectrogramDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func testConfig() Config {
	return Config{
		Roles:        []track.Role{track.Vocals, track.Drums},
		WindowLength: 4,
		Bands:        2,
		Workers:      2,
	}
}

func TestEncodeRecordingSkipsMissingTracks(t *testing.T) {
	l := newTestCorpus(t)
	writeFile(t, l.MIDIPath("song", track.Vocals), smfBytes(t, 480, [][4]uint32{
		{0, 60, 100, 0},
		{0, 60, 0, 480},
		{0, 64, 100, 0},
		{0, 64, 0, 480},
		{0, 67, 100, 0},
		{0, 67, 0, 480},
	}))
	writeFile(t, l.SpectrogramPath("song", track.Drums), npyBytes([]int{2, 3}, false, []float32{-1, -2, -3, -4, -5, -6}))

	enc, err := NewEncoder(l, testConfig(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	ex, err := enc.EncodeRecording(context.Background(), "song")
	if err != nil {
		t.Fatal(err)
	}
	if len(ex.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(ex.Tracks))
	}

	vocals, drums := ex.Tracks[0], ex.Tracks[1]
	if vocals.SymbolicSkipped || !vocals.SpectralSkipped {
		t.Fatalf("vocals skipped = %v/%v, want false/true", vocals.SymbolicSkipped, vocals.SpectralSkipped)
	}
	if !drums.SymbolicSkipped || drums.SpectralSkipped {
		t.Fatalf("drums skipped = %v/%v, want true/false", drums.SymbolicSkipped, drums.SpectralSkipped)
	}
	if vocals.Symbolic.Len() != 4 || vocals.Spectral.Len() != 4 {
		t.Fatalf("vocals window lengths = %d/%d", vocals.Symbolic.Len(), vocals.Spectral.Len())
	}
	if vocals.NextSymbolic == nil || vocals.NextSymbolic.Notes[0].Pitch != 67 {
		t.Fatalf("vocals continuation = %+v", vocals.NextSymbolic)
	}
	if drums.NextSpectral != nil {
		t.Fatal("three frames must not yield a continuation for window length 4")
	}
	for _, v := range vocals.Spectral.Data {
		if v != 0 {
			t.Fatal("skipped spectral window is not zero-filled")
		}
	}
	if got := drums.Spectral.Row(2); got[0] != -3 || got[1] != -6 {
		t.Fatalf("drums frame 2 = %v", got)
	}
	if vocals.Theory.Key < 0 {
		t.Fatal("vocals theory has no key")
	}
	if drums.Theory.Key != -1 {
		t.Fatalf("drums theory key = %d, want -1", drums.Theory.Key)
	}
}

func TestEncodeSpectralBandMismatch(t *testing.T) {
	l := newTestCorpus(t)
	writeFile(t, l.SpectrogramPath("song", track.Vocals), npyBytes([]int{3, 1}, false, []float32{1, 2, 3}))
	enc, err := NewEncoder(l, testConfig(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = enc.EncodeSpectral("song", track.Vocals)
	if !errors.Is(err, songerr.ErrData) {
		t.Fatalf("err = %v, want data error", err)
	}
	if songerr.IsFatal(err) {
		t.Fatal("band mismatch must be recoverable")
	}
}

func TestEncodeCorpus(t *testing.T) {
	l := newTestCorpus(t)
	writeFile(t, l.MIDIPath("b", track.Vocals), smfBytes(t, 480, [][4]uint32{{0, 60, 100, 0}, {0, 60, 0, 480}}))
	writeFile(t, l.MIDIPath("a", track.Drums), smfBytes(t, 480, [][4]uint32{{9, 36, 100, 0}, {9, 36, 0, 120}}))
	// Only corrupt files: the recording is dropped.
	writeFile(t, l.MIDIPath("c", track.Vocals), []byte("junk"))

	enc, err := NewEncoder(l, testConfig(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	examples, err := enc.EncodeCorpus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(examples) != 2 || examples[0].Recording != "a" || examples[1].Recording != "b" {
		t.Fatalf("examples = %v", recordings(examples))
	}
	if examples[0].Tracks[1].SymbolicSkipped {
		t.Fatal("drum track of a should be decoded")
	}
}

func TestEncodeCorpusCanceled(t *testing.T) {
	l := newTestCorpus(t)
	writeFile(t, l.MIDIPath("a", track.Vocals), smfBytes(t, 480, [][4]uint32{{0, 60, 100, 0}}))
	enc, err := NewEncoder(l, testConfig(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := enc.EncodeCorpus(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEncoderUsesCache(t *testing.T) {
	l := newTestCorpus(t)
	path := l.MIDIPath("song", track.Vocals)
	writeFile(t, path, smfBytes(t, 480, [][4]uint32{{0, 60, 100, 0}, {0, 60, 0, 480}}))

	store := kv.NewMemory()
	cache := NewCache(store, 4, 2)
	enc, err := NewEncoder(l, testConfig(), WithLogger(quietLogger()), WithCache(cache))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	first, err := enc.EncodeRecording(ctx, "song")
	if err != nil {
		t.Fatal(err)
	}
	recs, err := cache.Recordings(ctx)
	if err != nil || len(recs) != 1 || recs[0] != "song" {
		t.Fatalf("cached recordings = %v, %v", recs, err)
	}

	got, ok, err := cache.Get(ctx, "song")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Fingerprint != first.Fingerprint || got.Tracks[0].Symbolic.Notes[0] != first.Tracks[0].Symbolic.Notes[0] {
		t.Fatal("cached example differs from encoded example")
	}

	// Changing the source invalidates the entry.
	writeFile(t, path, smfBytes(t, 480, [][4]uint32{{0, 72, 100, 0}, {0, 72, 0, 480}, {0, 74, 90, 0}}))
	second, err := enc.EncodeRecording(ctx, "song")
	if err != nil {
		t.Fatal(err)
	}
	if second.Tracks[0].Symbolic.Notes[0].Pitch != 72 {
		t.Fatalf("stale cache entry served: %+v", second.Tracks[0].Symbolic.Notes[0])
	}

	if err := cache.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cache.Get(ctx, "song"); ok {
		t.Fatal("entry survived Purge")
	}
}

func TestCacheKeyedByChordLimit(t *testing.T) {
	l := newTestCorpus(t)
	// C major for one beat, then F major for one beat.
	writeFile(t, l.MIDIPath("song", track.Vocals), smfBytes(t, 480, [][4]uint32{
		{0, 60, 100, 0}, {0, 64, 100, 0}, {0, 67, 100, 0},
		{0, 60, 0, 480}, {0, 64, 0, 0}, {0, 67, 0, 0},
		{0, 65, 100, 0}, {0, 69, 100, 0}, {0, 72, 100, 0},
		{0, 65, 0, 480}, {0, 69, 0, 0}, {0, 72, 0, 0},
	}))

	cfg := testConfig()
	cfg.WindowLength = 12
	cache := NewCache(kv.NewMemory(), cfg.WindowLength, cfg.Bands)
	ctx := context.Background()

	chords := func(limit int) int {
		t.Helper()
		c := cfg
		c.Theory = TheoryConfig{ChordLimit: limit, QualitySlots: 4}
		enc, err := NewEncoder(l, c, WithLogger(quietLogger()), WithCache(cache))
		if err != nil {
			t.Fatal(err)
		}
		ex, err := enc.EncodeRecording(ctx, "song")
		if err != nil {
			t.Fatal(err)
		}
		return len(ex.Tracks[0].Theory.Chords)
	}
	if n := chords(16); n != 2 {
		t.Fatalf("chord limit 16: %d chords, want 2", n)
	}
	if n := chords(1); n != 1 {
		t.Fatalf("chord limit 1 after cached limit 16: %d chords, want 1", n)
	}
}

func TestNewEncoderValidates(t *testing.T) {
	if _, err := NewEncoder(corpus.Layout{}, Config{WindowLength: 4, Bands: 2}); err == nil {
		t.Fatal("expected error for empty roles")
	}
	if _, err := NewEncoder(corpus.Layout{}, Config{Roles: track.DefaultRoles, Bands: 2}); err == nil {
		t.Fatal("expected error for zero window length")
	}
}

func recordings(examples []Example) []string {
	out := make([]string, len(examples))
	for i, e := range examples {
		out[i] = e.Recording
	}
	return out
}
