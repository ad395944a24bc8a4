package model

import (
	"errors"
	"fmt"

	"github.com/haivivi/songgen/pkg/feature"
)

// Config sizes the fusion model. The zero value of every width field
// takes its default.
type Config struct {
	Tracks      int `yaml:"tracks" msgpack:"tracks"`
	Bands       int `yaml:"bands" msgpack:"bands"`
	TheoryWidth int `yaml:"theory_width" msgpack:"theory_width"`

	// Symbolic path.
	PitchEmbedding int   `yaml:"pitch_embedding" msgpack:"pitch_embedding"`
	BlockFilters   []int `yaml:"block_filters" msgpack:"block_filters"`
	Kernel         int   `yaml:"kernel" msgpack:"kernel"`

	// Spectral path.
	SpectralFilters int `yaml:"spectral_filters" msgpack:"spectral_filters"`
	SpectralHidden  int `yaml:"spectral_hidden" msgpack:"spectral_hidden"`

	// Theory path.
	TheoryDense   int `yaml:"theory_dense" msgpack:"theory_dense"`
	TheoryFilters int `yaml:"theory_filters" msgpack:"theory_filters"`

	// Seed initialises the parameters.
	Seed uint64 `yaml:"seed" msgpack:"seed"`
}

// DefaultConfig returns the full-size model for a corpus of the given
// shape.
func DefaultConfig(shape feature.Shape) Config {
	return Config{
		Tracks:      shape.Tracks,
		Bands:       shape.Bands,
		TheoryWidth: shape.TheoryWidth,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.PitchEmbedding <= 0 {
		c.PitchEmbedding = 32
	}
	if len(c.BlockFilters) == 0 {
		c.BlockFilters = []int{256, 128}
	}
	if c.Kernel <= 0 {
		c.Kernel = 3
	}
	if c.SpectralFilters <= 0 {
		c.SpectralFilters = 256
	}
	if c.SpectralHidden <= 0 {
		c.SpectralHidden = 128
	}
	if c.TheoryDense <= 0 {
		c.TheoryDense = 64
	}
	if c.TheoryFilters <= 0 {
		c.TheoryFilters = 128
	}
	return c
}

// WithShape copies the corpus dimensions of shape into c.
func (c Config) WithShape(shape feature.Shape) Config {
	c.Tracks = shape.Tracks
	c.Bands = shape.Bands
	c.TheoryWidth = shape.TheoryWidth
	return c
}

// Validate checks the corpus dimensions and widths.
func (c Config) Validate() error {
	switch {
	case c.Tracks <= 0:
		return errors.New("model: track count must be positive")
	case c.Bands <= 0:
		return errors.New("model: band count must be positive")
	case c.TheoryWidth <= 0:
		return errors.New("model: theory width must be positive")
	}
	for i, f := range c.BlockFilters {
		if f <= 0 {
			return fmt.Errorf("model: block %d has %d filters", i, f)
		}
	}
	return nil
}

// OutputWidth is the per-step width of a prediction.
func (c Config) OutputWidth() int { return c.Tracks * (feature.SymbolicChannels + c.Bands) }
