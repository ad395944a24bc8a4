package render

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/audio/mel"
	"github.com/haivivi/songgen/pkg/feature"
)

// InvertConfig controls spectral inversion.
type InvertConfig struct {
	Mel        mel.Config `yaml:"mel"`
	Iterations int        `yaml:"iterations"`
}

// DefaultInvertConfig returns 32 Griffin-Lim iterations over the default
// mel transform.
func DefaultInvertConfig() InvertConfig {
	return InvertConfig{Mel: mel.DefaultConfig(), Iterations: 32}
}

// ErrNonFinite is returned when a spectral tensor holds NaN or infinite
// values.
var ErrNonFinite = errors.New("non-finite spectral value")

// Inverter turns normalised mel-dB rows back into audio. It is not safe
// for concurrent use.
type Inverter struct {
	cfg  InvertConfig
	norm feature.Norm
	tr   *mel.Transform
}

// NewInverter prepares the mel transform for cfg.
func NewInverter(cfg InvertConfig, norm feature.Norm) (*Inverter, error) {
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("render: negative iteration count %d", cfg.Iterations)
	}
	tr, err := mel.New(cfg.Mel)
	if err != nil {
		return nil, err
	}
	return &Inverter{cfg: cfg, norm: norm, tr: tr}, nil
}

// SampleRate is the rate of the audio Invert returns.
func (inv *Inverter) SampleRate() int { return inv.tr.Config().SampleRate }

// Invert converts a rows × NumMels block of normalised mel dB values to
// samples: dB → power → linear magnitude → Griffin-Lim.
func (inv *Inverter) Invert(spectral *mat.Dense) ([]float64, error) {
	frames, bands := spectral.Dims()
	if bands != inv.tr.Config().NumMels {
		return nil, fmt.Errorf("spectral block has %d bands, transform has %d", bands, inv.tr.Config().NumMels)
	}
	db := mat.NewDense(frames, bands, nil)
	for i := 0; i < frames; i++ {
		for j := 0; j < bands; j++ {
			v := spectral.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w at frame %d band %d", ErrNonFinite, i, j)
			}
			db.Set(i, j, inv.norm.Decibels(v))
		}
	}
	mag := inv.tr.MelToMagnitude(mel.DBToPower(db))
	return inv.tr.GriffinLim(mag, inv.cfg.Iterations, 0), nil
}
