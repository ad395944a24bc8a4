package feature

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// smfBytes writes a type-1 SMF whose tracks hold the given note events.
// Each event is {channel, key, velocity, delta}; velocity 0 is a note-off.
func smfBytes(t *testing.T, tpb uint16, tracks ...[][4]uint32) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(tpb)
	for _, events := range tracks {
		var tr smf.Track
		for _, e := range events {
			ch, key, vel := uint8(e[0]), uint8(e[1]), uint8(e[2])
			if vel == 0 {
				tr.Add(e[3], midi.NoteOff(ch, key))
			} else {
				tr.Add(e[3], midi.NoteOn(ch, key, vel))
			}
		}
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// npyBytes encodes a float32 array in NPY version 1.0 format. values are
// given in the array's memory order.
func npyBytes(shape []int, fortran bool, values []float32) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	order := "False"
	if fortran {
		order = "True"
	}
	tuple := strings.Join(dims, ", ")
	if len(dims) == 1 {
		tuple += ","
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': %s, 'shape': (%s), }", order, tuple)
	// magic(6) + version(2) + length(2) + header + '\n' is a multiple of 64.
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	for _, v := range values {
		binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
