package generate

import (
	"errors"
	"math/rand/v2"

	"github.com/haivivi/songgen/pkg/feature"
)

// ErrNoExamples is returned by ComposeSeed for an empty corpus.
var ErrNoExamples = errors.New("generate: no examples to seed from")

// SeedSource records which recording each role of a composed seed came
// from. An empty recording means no example carried the role.
type SeedSource struct {
	Role      string `json:"role" yaml:"role"`
	Recording string `json:"recording" yaml:"recording"`
}

// ComposeSeed builds a cold-start example by drawing, independently for
// each role, one example whose track for that role was not skipped
// entirely. The theory descriptor travels with the chosen track, so it is
// always derived from the seed window itself.
func ComposeSeed(examples []feature.Example, rng *rand.Rand) (feature.Example, []SeedSource, error) {
	if len(examples) == 0 {
		return feature.Example{}, nil, ErrNoExamples
	}
	tracks := len(examples[0].Tracks)
	seed := feature.Example{Recording: "seed", Tracks: make([]feature.TrackFeatures, tracks)}
	sources := make([]SeedSource, tracks)
	for i := 0; i < tracks; i++ {
		var candidates []int
		for j, ex := range examples {
			if i >= len(ex.Tracks) {
				continue
			}
			if t := ex.Tracks[i]; !t.SymbolicSkipped || !t.SpectralSkipped {
				candidates = append(candidates, j)
			}
		}
		pick := 0
		if len(candidates) > 0 {
			pick = candidates[rng.IntN(len(candidates))]
		}
		ex := examples[pick]
		tf := ex.Tracks[i]
		tf.NextSymbolic, tf.NextSpectral = nil, nil
		seed.Tracks[i] = tf
		sources[i] = SeedSource{Role: string(tf.Role)}
		if len(candidates) > 0 {
			sources[i].Recording = ex.Recording
		}
	}
	return seed, sources, nil
}
