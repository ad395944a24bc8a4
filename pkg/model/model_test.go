package model

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/feature"
	"github.com/haivivi/songgen/pkg/nn"
	"github.com/haivivi/songgen/pkg/songerr"
	"github.com/haivivi/songgen/pkg/storage"
)

func tinyConfig() Config {
	return Config{
		Tracks:          2,
		Bands:           3,
		TheoryWidth:     4,
		PitchEmbedding:  2,
		BlockFilters:    []int{3, 2},
		Kernel:          2,
		SpectralFilters: 3,
		SpectralHidden:  2,
		TheoryDense:     2,
		TheoryFilters:   2,
		Seed:            7,
	}
}

func randomInput(rng *rand.Rand, cfg Config, steps int) Input {
	fill := func(r, c int) *mat.Dense {
		m := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				m.Set(i, j, rng.Float64())
			}
		}
		return m
	}
	return Input{
		Symbolic: fill(steps, cfg.Tracks*feature.SymbolicChannels),
		Spectral: fill(steps, cfg.Tracks*cfg.Bands),
		Theory:   fill(1, cfg.Tracks*cfg.TheoryWidth),
	}
}

func TestPredictShapes(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewPCG(1, 1))
	batch := []Input{randomInput(rng, cfg, 5), randomInput(rng, cfg, 9)}
	out, err := m.Predict(batch)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(batch) {
		t.Fatalf("got %d outputs for %d inputs", len(out), len(batch))
	}
	for i, o := range out {
		steps, _ := batch[i].Symbolic.Dims()
		if r, c := o.Symbolic.Dims(); r != steps || c != 6 {
			t.Errorf("output %d symbolic = %d×%d", i, r, c)
		}
		if r, c := o.Spectral.Dims(); r != steps || c != 6 {
			t.Errorf("output %d spectral = %d×%d", i, r, c)
		}
	}
}

func TestPredictIsPure(t *testing.T) {
	cfg := tinyConfig()
	m, _ := New(cfg)
	in := randomInput(rand.New(rand.NewPCG(2, 2)), cfg, 4)
	a, err := m.Predict([]Input{in})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Predict([]Input{in})
	if !mat.Equal(a[0].Symbolic, b[0].Symbolic) || !mat.Equal(a[0].Spectral, b[0].Spectral) {
		t.Fatal("repeated Predict calls disagree")
	}
}

func TestPredictShapeError(t *testing.T) {
	cfg := tinyConfig()
	m, _ := New(cfg)
	in := randomInput(rand.New(rand.NewPCG(3, 3)), cfg, 4)
	in.Spectral = mat.NewDense(4, 5, nil)
	_, err := m.Predict([]Input{in})
	if !errors.Is(err, songerr.ErrModel) {
		t.Fatalf("err = %v, want model error", err)
	}
}

func TestForwardGradientFlows(t *testing.T) {
	cfg := tinyConfig()
	m, _ := New(cfg)
	in := randomInput(rand.New(rand.NewPCG(4, 4)), cfg, 4)
	y, tape, err := m.Forward(in)
	if err != nil {
		t.Fatal(err)
	}
	r, c := y.Dims()
	_, grad := nn.MSE(y, mat.NewDense(r, c, nil))
	tape.Backward(grad)
	for _, p := range m.Params() {
		if p.Name == "fusion.w" && mat.Norm(p.G, 2) == 0 {
			t.Fatal("fusion weights received no gradient")
		}
	}
	var touched int
	for _, p := range m.Params() {
		if mat.Norm(p.G, 2) > 0 {
			touched++
		}
	}
	if touched < len(m.Params())/2 {
		t.Fatalf("only %d of %d parameters received gradient", touched, len(m.Params()))
	}
}

func TestSameSeedSameModel(t *testing.T) {
	a, _ := New(tinyConfig())
	b, _ := New(tinyConfig())
	for i, p := range a.Params() {
		if !mat.Equal(p.W, b.Params()[i].W) {
			t.Fatalf("parameter %s differs between equal seeds", p.Name)
		}
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	cfg := tinyConfig()
	m, _ := New(cfg)
	// Perturb so the round trip cannot pass by re-initialising.
	m.Params()[0].W.Set(0, 0, 42)

	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := Save(ctx, store, "models/m.msgpack", m); err != nil {
		t.Fatal(err)
	}
	got, err := Load(ctx, store, "models/m.msgpack")
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range m.Params() {
		if !mat.Equal(p.W, got.Params()[i].W) {
			t.Fatalf("parameter %s changed across save/load", p.Name)
		}
	}
}

// failingStore hands out writers that fail every write.
type failingStore struct {
	storage.FileStore
	w *failingWriter
}

func (s *failingStore) Write(context.Context, string) (io.WriteCloser, error) { return s.w, nil }

type failingWriter struct {
	aborted, closed bool
}

func (w *failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (w *failingWriter) Abort(error) { w.aborted = true }
func (w *failingWriter) Close() error { w.closed = true; return nil }

func TestSaveAbortsOnEncodeError(t *testing.T) {
	m, _ := New(tinyConfig())
	store := &failingStore{w: &failingWriter{}}
	err := Save(context.Background(), store, "m.msgpack", m)
	if !errors.Is(err, songerr.ErrModel) {
		t.Fatalf("err = %v, want model error", err)
	}
	if !store.w.aborted || store.w.closed {
		t.Fatalf("aborted = %v, closed = %v; a failed save must abort, not commit", store.w.aborted, store.w.closed)
	}
}

func TestLoadMissing(t *testing.T) {
	store, _ := storage.NewLocal(t.TempDir())
	_, err := Load(context.Background(), store, "nope")
	if !errors.Is(err, songerr.ErrModel) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
	if !songerr.IsFatal(err) {
		t.Fatal("load failure must be fatal")
	}
}

func TestDecodeRejectsMismatch(t *testing.T) {
	m, _ := New(tinyConfig())
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if _, err := Decode(bytes.NewReader(data[:len(data)/2])); err == nil {
		t.Fatal("expected error for truncated artifact")
	}
}

func TestConfigValidate(t *testing.T) {
	if _, err := New(Config{Bands: 2, TheoryWidth: 2}); err == nil {
		t.Fatal("expected error for zero tracks")
	}
	d := DefaultConfig(feature.Shape{Length: 100, Tracks: 4, Bands: 128, TheoryWidth: 72})
	if d.OutputWidth() != 4*131 {
		t.Fatalf("OutputWidth = %d", d.OutputWidth())
	}
}
