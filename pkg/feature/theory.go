package feature

import (
	"math"
	"sort"
)

// Pitch classes per octave.
const pitchClasses = 12

// Chord quality slots inside each root's block of the chord profile.
const (
	QualityMajor = 0
	QualityMinor = 1
)

// TheoryConfig bounds the theory descriptor.
type TheoryConfig struct {
	// ChordLimit is how many leading chords of a window are encoded.
	ChordLimit int `yaml:"chord_limit"`
	// QualitySlots is the number of chord quality slots per root. Only
	// major and minor are assigned; the remaining slots stay zero.
	QualitySlots int `yaml:"quality_slots"`
}

// DefaultTheoryConfig returns 16 chords and 4 quality slots per root.
func DefaultTheoryConfig() TheoryConfig {
	return TheoryConfig{ChordLimit: 16, QualitySlots: 4}
}

func (c TheoryConfig) withDefaults() TheoryConfig {
	d := DefaultTheoryConfig()
	if c.ChordLimit <= 0 {
		c.ChordLimit = d.ChordLimit
	}
	if c.QualitySlots < 2 {
		c.QualitySlots = d.QualitySlots
	}
	return c
}

// Width returns the descriptor length: key (12) + scale (12) + chords
// (12 × QualitySlots).
func (c TheoryConfig) Width() int {
	c = c.withDefaults()
	return 2*pitchClasses + pitchClasses*c.QualitySlots
}

// TheoryDescriptor is the encoded key, scale and chord content of one
// symbolic window.
type TheoryDescriptor struct {
	// Key is the tonic pitch class, or -1 when the window has no notes.
	Key   int  `msgpack:"key"`
	Minor bool `msgpack:"minor"`
	// Chords lists the classified (root, quality) pairs that were encoded.
	Chords []Chord   `msgpack:"chords"`
	Vector []float32 `msgpack:"vec"`
}

// Chord is a classified triad.
type Chord struct {
	Root    int `msgpack:"root"`
	Quality int `msgpack:"q"`
}

// Krumhansl–Kessler key profiles.
var (
	majorProfile = [pitchClasses]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [pitchClasses]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}

	majorScale = []int{0, 2, 4, 5, 7, 9, 11}
	minorScale = []int{0, 2, 3, 5, 7, 8, 10}
)

// interval is a sounding note.
type interval struct {
	pitch      uint8
	start, end int64
}

// EncodeTheory derives the theory descriptor of w. A window without any
// note-on events yields an all-zero vector with Key -1.
func EncodeTheory(w SymbolicWindow, cfg TheoryConfig) TheoryDescriptor {
	cfg = cfg.withDefaults()
	d := TheoryDescriptor{Key: -1, Vector: make([]float32, cfg.Width())}

	tpb := int64(w.TicksPerBeat)
	if tpb <= 0 {
		tpb = DefaultTicksPerBeat
	}
	notes := timeline(w.Notes, tpb)
	if len(notes) == 0 {
		return d
	}

	var hist [pitchClasses]float64
	for _, n := range notes {
		hist[int(n.pitch)%pitchClasses] += float64(n.end - n.start)
	}
	tonic, minor, ok := findKey(hist)
	if !ok {
		return d
	}
	d.Key, d.Minor = tonic, minor

	d.Vector[tonic] = 1
	scale := majorScale
	if minor {
		scale = minorScale
	}
	for _, step := range scale {
		d.Vector[pitchClasses+(tonic+step)%pitchClasses] = 1
	}

	base := 2 * pitchClasses
	for _, set := range chordSets(notes, tpb, cfg.ChordLimit) {
		root, quality, ok := classifyTriad(set)
		if !ok {
			continue
		}
		d.Chords = append(d.Chords, Chord{Root: root, Quality: quality})
		d.Vector[base+root*cfg.QualitySlots+quality] = 1
	}
	return d
}

// timeline pairs note-ons with the next note-off of the same pitch.
// Padding and zero-pitch entries are ignored; notes never released last
// one beat.
func timeline(events []Note, tpb int64) []interval {
	open := make(map[uint8][]int64)
	var out []interval
	for _, e := range events {
		if e.Pitch == 0 {
			continue
		}
		if e.Velocity > 0 {
			open[e.Pitch] = append(open[e.Pitch], e.Time)
			continue
		}
		starts := open[e.Pitch]
		if len(starts) == 0 {
			continue
		}
		start := starts[0]
		open[e.Pitch] = starts[1:]
		end := e.Time
		if end <= start {
			end = start + 1
		}
		out = append(out, interval{pitch: e.Pitch, start: start, end: end})
	}
	for p, starts := range open {
		for _, s := range starts {
			out = append(out, interval{pitch: p, start: s, end: s + tpb})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].pitch < out[j].pitch
	})
	return out
}

// findKey correlates the pitch-class histogram with the 24 rotated key
// profiles and returns the best tonic and mode. Ties keep the first
// candidate in (C major, C minor, C# major, ...) order.
func findKey(hist [pitchClasses]float64) (tonic int, minor bool, ok bool) {
	best := math.Inf(-1)
	for t := 0; t < pitchClasses; t++ {
		for _, m := range []bool{false, true} {
			profile := &majorProfile
			if m {
				profile = &minorProfile
			}
			var rotated [pitchClasses]float64
			for i := range rotated {
				rotated[(t+i)%pitchClasses] = profile[i]
			}
			r := pearson(hist[:], rotated[:])
			if math.IsNaN(r) {
				continue
			}
			if r > best {
				best, tonic, minor, ok = r, t, m, true
			}
		}
	}
	return tonic, minor, ok
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var sa, sb float64
	for i := range a {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/n, sb/n
	var num, da, db float64
	for i := range a {
		x, y := a[i]-ma, b[i]-mb
		num += x * y
		da += x * x
		db += y * y
	}
	if da == 0 || db == 0 {
		return math.NaN()
	}
	return num / math.Sqrt(da*db)
}

// chordSets samples the sounding pitch-class set once per beat, collapses
// consecutive repeats and returns at most limit non-empty sets. A rest
// separates repeats.
func chordSets(notes []interval, step int64, limit int) [][pitchClasses]bool {
	first, last := notes[0].start, notes[0].end
	for _, n := range notes {
		if n.end > last {
			last = n.end
		}
	}

	var (
		out     [][pitchClasses]bool
		prev    [pitchClasses]bool
		hasPrev bool
		lo      int
	)
	for pos := first; pos < last && len(out) < limit; pos += step {
		var set [pitchClasses]bool
		empty := true
		// notes is sorted by start; skip those that ended before pos.
		for lo < len(notes) && notes[lo].end <= pos && notes[lo].start < pos {
			lo++
		}
		for i := lo; i < len(notes) && notes[i].start < pos+step; i++ {
			if notes[i].end > pos {
				set[int(notes[i].pitch)%pitchClasses] = true
				empty = false
			}
		}
		if empty {
			hasPrev = false
			continue
		}
		if hasPrev && set == prev {
			continue
		}
		out = append(out, set)
		prev, hasPrev = set, true
	}
	return out
}

// classifyTriad recognises exactly-three-pitch-class major and minor
// triads.
func classifyTriad(set [pitchClasses]bool) (root, quality int, ok bool) {
	count := 0
	for _, on := range set {
		if on {
			count++
		}
	}
	if count != 3 {
		return 0, 0, false
	}
	for r := 0; r < pitchClasses; r++ {
		if !set[r] || !set[(r+7)%pitchClasses] {
			continue
		}
		switch {
		case set[(r+4)%pitchClasses]:
			return r, QualityMajor, true
		case set[(r+3)%pitchClasses]:
			return r, QualityMinor, true
		}
	}
	return 0, 0, false
}
