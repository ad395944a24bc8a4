package render

import (
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// monoStreamer streams a mono buffer as a beep.Streamer.
type monoStreamer struct {
	buf []float64
	pos int
}

func (s *monoStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.buf) {
		return 0, false
	}
	for n < len(samples) && s.pos < len(s.buf) {
		v := clampSample(s.buf[s.pos])
		samples[n] = [2]float64{v, v}
		n++
		s.pos++
	}
	return n, true
}

func (s *monoStreamer) Err() error { return nil }

func clampSample(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

// EncodeWAV writes samples as mono 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, samples []float64, rate int) error {
	format := beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: 1,
		Precision:   2,
	}
	return wav.Encode(w, &monoStreamer{buf: samples}, format)
}

// WriteWAV writes samples to path as mono 16-bit PCM.
func WriteWAV(path string, samples []float64, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, samples, rate); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	return f.Close()
}
