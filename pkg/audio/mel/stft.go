package mel

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// STFT returns the centred short-time spectrum of x, one row of Bins()
// coefficients per frame.
func (t *Transform) STFT(x []float64) [][]complex128 {
	n, hop := t.cfg.FFTSize, t.cfg.HopSize
	pad := n / 2
	frames := 1 + len(x)/hop
	spec := make([][]complex128, frames)
	buf := make([]float64, n)
	for i := range spec {
		start := i*hop - pad
		for k := 0; k < n; k++ {
			j := start + k
			if j >= 0 && j < len(x) {
				buf[k] = x[j] * t.window[k]
			} else {
				buf[k] = 0
			}
		}
		spec[i] = t.fft.Coefficients(nil, buf)
	}
	return spec
}

// ISTFT inverts a centred spectrum by windowed overlap-add. length is the
// number of samples to return; zero means (frames-1)·HopSize.
func (t *Transform) ISTFT(spec [][]complex128, length int) []float64 {
	n, hop := t.cfg.FFTSize, t.cfg.HopSize
	pad := n / 2
	if length <= 0 {
		length = max(0, (len(spec)-1)*hop)
	}
	out := make([]float64, length)
	norm := make([]float64, length)
	frame := make([]float64, n)
	scale := 1 / float64(n)
	for i, coeffs := range spec {
		t.fft.Sequence(frame, coeffs)
		start := i*hop - pad
		for k := 0; k < n; k++ {
			j := start + k
			if j < 0 || j >= length {
				continue
			}
			w := t.window[k]
			out[j] += frame[k] * scale * w
			norm[j] += w * w
		}
	}
	for j := range out {
		if norm[j] > 1e-10 {
			out[j] /= norm[j]
		}
	}
	return out
}

// Magnitude returns |spec| as a frames × Bins matrix.
func Magnitude(spec [][]complex128) *mat.Dense {
	if len(spec) == 0 {
		return nil
	}
	m := mat.NewDense(len(spec), len(spec[0]), nil)
	for i, row := range spec {
		for k, c := range row {
			m.Set(i, k, cmplx.Abs(c))
		}
	}
	return m
}

// MelPower returns the frames × NumMels mel power spectrogram of x.
func (t *Transform) MelPower(x []float64) *mat.Dense {
	mag := Magnitude(t.STFT(x))
	mag.MulElem(mag, mag)
	var out mat.Dense
	out.Mul(mag, t.bank.T())
	return &out
}

// MelToMagnitude projects a frames × NumMels mel power spectrogram back
// to a frames × Bins linear magnitude spectrogram. Each bin's power is the
// filter-weighted mean of the mel bands covering it.
func (t *Transform) MelToMagnitude(melPower *mat.Dense) *mat.Dense {
	var power mat.Dense
	power.Mul(melPower, t.bank)
	frames, bins := power.Dims()
	weight := make([]float64, bins)
	for k := range weight {
		weight[k] = mat.Sum(t.bank.ColView(k))
	}
	for i := 0; i < frames; i++ {
		for k := 0; k < bins; k++ {
			v := 0.0
			if weight[k] > 0 {
				v = math.Sqrt(math.Max(0, power.At(i, k)/weight[k]))
			}
			power.Set(i, k, v)
		}
	}
	return &power
}

// PowerToDB converts power to decibels relative to ref, floored at
// floorDB below the maximum.
func PowerToDB(p *mat.Dense, ref, floorDB float64) *mat.Dense {
	var db mat.Dense
	db.Apply(func(_, _ int, v float64) float64 {
		return 10 * math.Log10(math.Max(v, 1e-10)/ref)
	}, p)
	if floorDB > 0 {
		top := mat.Max(&db) - floorDB
		db.Apply(func(_, _ int, v float64) float64 { return math.Max(v, top) }, &db)
	}
	return &db
}

// DBToPower inverts PowerToDB for ref 1.
func DBToPower(db *mat.Dense) *mat.Dense {
	var p mat.Dense
	p.Apply(func(_, _ int, v float64) float64 { return math.Pow(10, v/10) }, db)
	return &p
}
