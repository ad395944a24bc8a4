// Package feature turns per-track corpus files into fixed-length model
// windows.
//
// Each (recording, role) pair contributes a symbolic window decoded from
// its MIDI file, a spectral window decoded from its spectrogram array and
// a theory descriptor derived from the symbolic window. All windows are
// fitted to the configured length with FitToLength.
package feature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/songgen/pkg/corpus"
	"github.com/haivivi/songgen/pkg/songerr"
	"github.com/haivivi/songgen/pkg/track"
)

// Config controls window encoding.
type Config struct {
	Roles        []track.Role `yaml:"roles"`
	WindowLength int          `yaml:"window_length"`
	Bands        int          `yaml:"bands"`
	Theory       TheoryConfig `yaml:"theory"`
	// Workers bounds how many recordings are encoded concurrently.
	// Zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the four default roles, 100-step windows and 128
// mel bands.
func DefaultConfig() Config {
	return Config{
		Roles:        track.DefaultRoles,
		WindowLength: 100,
		Bands:        128,
		Theory:       DefaultTheoryConfig(),
	}
}

// Shape returns the tensor shape examples encoded with c have.
func (c Config) Shape() Shape {
	return Shape{
		Length:      c.WindowLength,
		Tracks:      len(c.Roles),
		Bands:       c.Bands,
		TheoryWidth: c.Theory.Width(),
	}
}

func (c Config) validate() error {
	if len(c.Roles) == 0 {
		return errors.New("feature: no roles configured")
	}
	if c.WindowLength <= 0 {
		return fmt.Errorf("feature: window length must be positive, got %d", c.WindowLength)
	}
	if c.Bands <= 0 {
		return fmt.Errorf("feature: band count must be positive, got %d", c.Bands)
	}
	return nil
}

// Encoder encodes corpus recordings.
type Encoder struct {
	cfg    Config
	layout corpus.Layout
	cache  *Cache
	logger *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithCache makes the encoder read and populate c.
func WithCache(c *Cache) Option { return func(e *Encoder) { e.cache = c } }

// WithLogger sets the logger used for skipped tracks.
func WithLogger(l *slog.Logger) Option { return func(e *Encoder) { e.logger = l } }

// NewEncoder returns an encoder for the corpus at layout.
func NewEncoder(layout corpus.Layout, cfg Config, opts ...Option) (*Encoder, error) {
	cfg.Theory = cfg.Theory.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Encoder{cfg: cfg, layout: layout, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config returns the encoder configuration with defaults applied.
func (e *Encoder) Config() Config { return e.cfg }

// EncodeSymbolic returns the symbolic window of one track together with
// the window that follows it, if the file is long enough.
func (e *Encoder) EncodeSymbolic(recording string, role track.Role) (SymbolicWindow, *SymbolicWindow, error) {
	f, err := os.Open(e.layout.MIDIPath(recording, role))
	if err != nil {
		return SymbolicWindow{}, nil, songerr.Data("encode-symbolic", recording, string(role), err)
	}
	defer f.Close()

	notes, tpb, err := DecodeMIDI(f, role.ExpectedKind())
	if err != nil {
		return SymbolicWindow{}, nil, songerr.Data("encode-symbolic", recording, string(role), err)
	}
	n := e.cfg.WindowLength
	cur := NewSymbolicWindow(notes, tpb, n)
	if next, ok := continuation(notes, tpb, n); ok {
		return cur, &next, nil
	}
	return cur, nil, nil
}

// EncodeSpectral returns the spectral window of one track together with
// the window that follows it, if the array is long enough.
func (e *Encoder) EncodeSpectral(recording string, role track.Role) (SpectralWindow, *SpectralWindow, error) {
	f, err := os.Open(e.layout.SpectrogramPath(recording, role))
	if err != nil {
		return SpectralWindow{}, nil, songerr.Data("encode-spectral", recording, string(role), err)
	}
	defer f.Close()

	data, bands, frames, err := DecodeSpectrogram(f)
	if err != nil {
		return SpectralWindow{}, nil, songerr.Data("encode-spectral", recording, string(role), err)
	}
	if bands != e.cfg.Bands {
		err := fmt.Errorf("spectrogram has %d bands, want %d", bands, e.cfg.Bands)
		return SpectralWindow{}, nil, songerr.Data("encode-spectral", recording, string(role), err)
	}
	n := e.cfg.WindowLength
	cur := NewSpectralWindow(data, bands, n)
	if frames > n {
		next := NewSpectralWindow(data[n*bands:], bands, n)
		return cur, &next, nil
	}
	return cur, nil, nil
}

// EncodeRecording encodes every configured role of one recording. A track
// whose file is missing or unreadable is logged, zero-filled and flagged;
// it never fails the recording.
func (e *Encoder) EncodeRecording(ctx context.Context, recording string) (Example, error) {
	fp := e.fingerprint(recording)
	if e.cache != nil {
		ex, ok, err := e.cache.Get(ctx, recording)
		if err != nil {
			e.logger.Warn("read corpus cache", "recording", recording, "error", err)
		} else if ok && ex.Fingerprint == fp && len(ex.Tracks) == len(e.cfg.Roles) {
			return ex, nil
		}
	}

	ex := Example{Recording: recording, Fingerprint: fp, Tracks: make([]TrackFeatures, len(e.cfg.Roles))}
	for i, role := range e.cfg.Roles {
		if err := ctx.Err(); err != nil {
			return Example{}, err
		}
		tf := TrackFeatures{Role: role}

		sym, nextSym, err := e.EncodeSymbolic(recording, role)
		if err != nil {
			e.skip(err)
			sym = NewSymbolicWindow(nil, DefaultTicksPerBeat, e.cfg.WindowLength)
			tf.SymbolicSkipped = true
		}
		tf.Symbolic, tf.NextSymbolic = sym, nextSym

		spec, nextSpec, err := e.EncodeSpectral(recording, role)
		if err != nil {
			e.skip(err)
			spec = NewSpectralWindow(nil, e.cfg.Bands, e.cfg.WindowLength)
			tf.SpectralSkipped = true
		}
		tf.Spectral, tf.NextSpectral = spec, nextSpec

		tf.Theory = EncodeTheory(tf.Symbolic, e.cfg.Theory)
		ex.Tracks[i] = tf
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, ex); err != nil {
			e.logger.Warn("write corpus cache", "recording", recording, "error", err)
		}
	}
	return ex, nil
}

// EncodeCorpus encodes every recording found under the layout, in sorted
// recording order. Recordings with no readable track are dropped with a
// warning. Only context cancellation and an unreadable corpus root fail
// the call.
func (e *Encoder) EncodeCorpus(ctx context.Context) ([]Example, error) {
	recs, err := e.layout.Recordings(e.cfg.Roles)
	if err != nil {
		return nil, songerr.Data("encode-corpus", "", "", err)
	}

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	slots := make([]Example, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range recs {
		g.Go(func() error {
			ex, err := e.EncodeRecording(gctx, rec)
			if err != nil {
				return err
			}
			slots[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := slots[:0]
	for _, ex := range slots {
		if !ex.Usable() {
			e.logger.Warn("drop recording without readable tracks", "recording", ex.Recording)
			continue
		}
		out = append(out, ex)
	}
	e.logger.Info("encoded corpus", "recordings", len(recs), "usable", len(out))
	return out, nil
}

func (e *Encoder) skip(err error) {
	var se *songerr.Error
	if errors.As(err, &se) {
		e.logger.Warn("skip track", se.LogAttrs()...)
		return
	}
	e.logger.Warn("skip track", "error", err)
}

// fingerprint summarises the encoding settings and the size and
// modification time of every source file of a recording so cached examples
// are invalidated when either changes.
func (e *Encoder) fingerprint(recording string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(e.cfg.WindowLength))
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(e.cfg.Bands))
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(e.cfg.Theory.Width()))
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(e.cfg.Theory.withDefaults().ChordLimit))
	for _, role := range e.cfg.Roles {
		for _, path := range []string{e.layout.MIDIPath(recording, role), e.layout.SpectrogramPath(recording, role)} {
			b.WriteByte('|')
			fi, err := os.Stat(path)
			if err != nil {
				b.WriteByte('-')
				continue
			}
			b.WriteString(strconv.FormatInt(fi.Size(), 36))
			b.WriteByte('.')
			b.WriteString(strconv.FormatInt(fi.ModTime().UnixNano(), 36))
		}
	}
	return b.String()
}
