// Package track defines the instrument roles a song is split into and the
// single rule that decides whether a MIDI track carries percussion.
//
// The same Classify function is used when encoding corpus MIDI files and
// when rendering generated MIDI, so a rendered file re-encodes into the
// same roles it was produced from.
package track

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Role is an instrument stem label such as "drums".
type Role string

// Default roles, in tensor order.
const (
	Vocals Role = "vocals"
	Drums  Role = "drums"
	Bass   Role = "bass"
	Other  Role = "other"
)

// DefaultRoles is the role order used when no configuration overrides it.
var DefaultRoles = []Role{Vocals, Drums, Bass, Other}

// Kind is the result of classifying a MIDI track.
type Kind int

const (
	// Melodic tracks carry pitched notes.
	Melodic Kind = iota
	// Percussion tracks carry drum hits.
	Percussion
)

func (k Kind) String() string {
	if k == Percussion {
		return "drums"
	}
	return "melodic"
}

// ExpectedKind returns the kind of MIDI track that feeds r.
func (r Role) ExpectedKind() Kind {
	if r == Drums {
		return Percussion
	}
	return Melodic
}

// ParseRoles converts role labels into Roles, rejecting empty and
// duplicate labels.
func ParseRoles(labels []string) ([]Role, error) {
	if len(labels) == 0 {
		return append([]Role(nil), DefaultRoles...), nil
	}
	seen := make(map[string]bool, len(labels))
	roles := make([]Role, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("track: empty role label")
		}
		if seen[l] {
			return nil, fmt.Errorf("track: duplicate role %q", l)
		}
		seen[l] = true
		roles = append(roles, Role(l))
	}
	return roles, nil
}

// Channel returns the MIDI channel generated notes for r are written on.
// index is r's position in the role list.
func (r Role) Channel(index int) uint8 {
	if r.ExpectedKind() == Percussion {
		return PercussionChannel
	}
	ch := uint8(index % 15)
	if ch >= PercussionChannel {
		ch++
	}
	return ch
}

// PercussionChannel is General MIDI channel 10 (zero based).
const PercussionChannel = 9

const (
	percussionProgramLow  = 112
	percussionProgramHigh = 127
	panController         = 10
)

// Classify inspects every event of t and reports Percussion when any of
// these hold:
//   - a note is played on the percussion channel;
//   - a program change selects a program in 112..127 (percussive family);
//   - controller 10 is set.
//
// Otherwise the track is Melodic.
func Classify(t smf.Track) Kind {
	for _, ev := range t {
		msg := midi.Message(ev.Message)
		var ch, a, b uint8
		switch {
		case msg.GetNoteOn(&ch, &a, &b):
			if ch == PercussionChannel {
				return Percussion
			}
		case msg.GetNoteOff(&ch, &a, &b):
			if ch == PercussionChannel {
				return Percussion
			}
		case msg.GetProgramChange(&ch, &a):
			if a >= percussionProgramLow && a <= percussionProgramHigh {
				return Percussion
			}
		case msg.GetControlChange(&ch, &a, &b):
			if a == panController {
				return Percussion
			}
		}
	}
	return Melodic
}
