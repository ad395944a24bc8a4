package feature

import (
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/haivivi/songgen/pkg/track"
)

// DefaultTicksPerBeat is assumed when an SMF file uses SMPTE timing.
const DefaultTicksPerBeat = 480

// Note is one symbolic step: a note-on (Velocity > 0) or note-off
// (Velocity == 0) of Pitch at cumulative tick Time. The zero Note is
// padding.
type Note struct {
	Pitch    uint8 `msgpack:"p"`
	Velocity uint8 `msgpack:"v"`
	Time     int64 `msgpack:"t"`
}

// IsPadding reports whether n carries no event.
func (n Note) IsPadding() bool { return n.Pitch == 0 && n.Velocity == 0 && n.Time == 0 }

// SymbolicWindow is a fixed-length sequence of note events for one track.
type SymbolicWindow struct {
	Notes        []Note `msgpack:"notes"`
	TicksPerBeat int    `msgpack:"tpb"`
	// Origin is the time of the event preceding the window, used as the
	// reference for the first inter-event delta. Zero for a window that
	// starts at the beginning of its source.
	Origin int64 `msgpack:"origin"`
}

// Len returns the window length.
func (w SymbolicWindow) Len() int { return len(w.Notes) }

// NewSymbolicWindow fits notes to length n.
func NewSymbolicWindow(notes []Note, ticksPerBeat, n int) SymbolicWindow {
	if ticksPerBeat <= 0 {
		ticksPerBeat = DefaultTicksPerBeat
	}
	return SymbolicWindow{Notes: FitToLength(notes, n), TicksPerBeat: ticksPerBeat}
}

// continuation returns the window following the first n notes, or false
// when notes has nothing beyond them.
func continuation(notes []Note, ticksPerBeat, n int) (SymbolicWindow, bool) {
	if len(notes) <= n {
		return SymbolicWindow{}, false
	}
	w := NewSymbolicWindow(notes[n:], ticksPerBeat, n)
	w.Origin = notes[n-1].Time
	return w, true
}

// DecodeMIDI reads an SMF stream and returns the note events of every
// track whose classification equals kind, merged in file order, with
// cumulative tick times. Delta times continue across merged tracks.
func DecodeMIDI(r io.Reader, kind track.Kind) ([]Note, int, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read smf: %w", err)
	}
	tpb := DefaultTicksPerBeat
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && mt > 0 {
		tpb = int(mt)
	}

	var (
		notes []Note
		now   int64
	)
	for _, tr := range s.Tracks {
		if track.Classify(tr) != kind {
			continue
		}
		for _, ev := range tr {
			now += int64(ev.Delta)
			msg := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case msg.GetNoteOn(&ch, &key, &vel):
				notes = append(notes, Note{Pitch: key, Velocity: vel, Time: now})
			case msg.GetNoteOff(&ch, &key, &vel):
				notes = append(notes, Note{Pitch: key, Velocity: 0, Time: now})
			}
		}
	}
	return notes, tpb, nil
}
