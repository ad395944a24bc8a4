package render

import (
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/feature"
	"github.com/haivivi/songgen/pkg/track"
)

// MIDIConfig controls symbolic export.
type MIDIConfig struct {
	TicksPerBeat int     `yaml:"ticks_per_beat"`
	Tempo        float64 `yaml:"tempo"`
}

// DefaultMIDIConfig returns 480 ticks per beat at 120 BPM.
func DefaultMIDIConfig() MIDIConfig { return MIDIConfig{TicksPerBeat: 480, Tempo: 120} }

func (c MIDIConfig) withDefaults() MIDIConfig {
	d := DefaultMIDIConfig()
	if c.TicksPerBeat <= 0 {
		c.TicksPerBeat = d.TicksPerBeat
	}
	if c.Tempo <= 0 {
		c.Tempo = d.Tempo
	}
	return c
}

// WriteMIDI writes one SMF track per role from the generated symbolic
// tensor (rows × 3·len(roles)). A row emits a note only when its pitch and
// velocity are both positive after de-normalisation; the note starts at
// delta 0 and ends after the row's time channel, or a sixteenth when that
// rounds to zero. Drum roles play on the percussion channel.
func WriteMIDI(w io.Writer, symbolic *mat.Dense, roles []track.Role, norm feature.Norm, cfg MIDIConfig) error {
	cfg = cfg.withDefaults()
	rows, cols := symbolic.Dims()
	if cols != len(roles)*feature.SymbolicChannels {
		return fmt.Errorf("symbolic tensor has %d columns for %d roles", cols, len(roles))
	}
	sixteenth := uint32(cfg.TicksPerBeat / 4)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(cfg.TicksPerBeat)
	for i, role := range roles {
		ch := role.Channel(i)
		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(string(role)))
		tr.Add(0, smf.MetaTempo(cfg.Tempo))
		base := i * feature.SymbolicChannels
		for r := 0; r < rows; r++ {
			step := norm.SymbolicStep(symbolic.At(r, base), symbolic.At(r, base+1), symbolic.At(r, base+2), cfg.TicksPerBeat)
			if !step.Emittable() {
				continue
			}
			length := uint32(step.Delta)
			if length == 0 {
				length = sixteenth
			}
			tr.Add(0, midi.NoteOn(ch, uint8(step.Pitch), uint8(step.Velocity)))
			tr.Add(length, midi.NoteOff(ch, uint8(step.Pitch)))
		}
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			return fmt.Errorf("add track %s: %w", role, err)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}
