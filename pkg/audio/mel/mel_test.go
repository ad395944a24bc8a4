package mel

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func smallConfig() Config {
	return Config{SampleRate: 8000, FFTSize: 256, HopSize: 64, NumMels: 20}
}

func tone(n int, sr float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		ti := float64(i) / sr
		x[i] = 0.5*math.Sin(2*math.Pi*440*ti) + 0.25*math.Sin(2*math.Pi*1320*ti)
	}
	return x
}

func TestMelConversion(t *testing.T) {
	for _, hz := range []float64{0, 100, 440, 1000, 8000} {
		if got := melToHz(hzToMel(hz)); math.Abs(got-hz) > 1e-6 {
			t.Errorf("melToHz(hzToMel(%v)) = %v", hz, got)
		}
	}
	if hzToMel(1000) < 999 || hzToMel(1000) > 1001 {
		t.Errorf("hzToMel(1000) = %v, want about 1000", hzToMel(1000))
	}
}

func TestFilterBank(t *testing.T) {
	tr, err := New(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	bank := tr.FilterBank()
	r, c := bank.Dims()
	if r != 20 || c != tr.Bins() {
		t.Fatalf("bank = %d×%d, want 20×%d", r, c, tr.Bins())
	}
	prevPeak := -1
	for m := 0; m < r; m++ {
		row := mat.Row(nil, m, bank)
		peak, sum := 0, 0.0
		for k, w := range row {
			if w < 0 || w > 1 {
				t.Fatalf("filter %d bin %d weight %v out of [0,1]", m, k, w)
			}
			if w > row[peak] {
				peak = k
			}
			sum += w
		}
		if sum == 0 {
			t.Fatalf("filter %d is empty", m)
		}
		if peak < prevPeak {
			t.Fatalf("filter %d peaks at bin %d before filter %d (bin %d)", m, peak, m-1, prevPeak)
		}
		prevPeak = peak
	}
}

func TestSTFTRoundTrip(t *testing.T) {
	tr, _ := New(smallConfig())
	rng := rand.New(rand.NewPCG(1, 1))
	x := make([]float64, 1024)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}
	spec := tr.STFT(x)
	if len(spec) != 1+1024/64 {
		t.Fatalf("frames = %d", len(spec))
	}
	y := tr.ISTFT(spec, len(x))
	for i := range x {
		if math.Abs(x[i]-y[i]) > 1e-9 {
			t.Fatalf("sample %d: %v != %v", i, y[i], x[i])
		}
	}
}

func TestGriffinLimConverges(t *testing.T) {
	tr, _ := New(smallConfig())
	x := tone(2048, 8000)
	mag := Magnitude(tr.STFT(x))

	coarse := tr.SpectralConvergence(mag, tr.GriffinLim(mag, 0, len(x)))
	fine := tr.SpectralConvergence(mag, tr.GriffinLim(mag, 16, len(x)))
	if !(fine < coarse) {
		t.Fatalf("spectral convergence %v after 16 iterations, %v with none", fine, coarse)
	}
}

func TestMelRoundTrip(t *testing.T) {
	tr, _ := New(smallConfig())
	x := tone(2048, 8000)
	melPower := tr.MelPower(x)
	frames, bands := melPower.Dims()
	if frames != 1+2048/64 || bands != 20 {
		t.Fatalf("mel = %d×%d", frames, bands)
	}
	mag := tr.MelToMagnitude(melPower)
	if _, bins := mag.Dims(); bins != tr.Bins() {
		t.Fatalf("bins = %d", bins)
	}
	if mat.Min(mag) < 0 {
		t.Fatal("negative magnitude")
	}
	y := tr.GriffinLim(mag, 8, len(x))
	if len(y) != len(x) {
		t.Fatalf("len = %d", len(y))
	}
	// The reconstruction keeps most energy in the 440 Hz band.
	back := tr.MelPower(y)
	if mat.Sum(back) == 0 {
		t.Fatal("silent reconstruction")
	}
}

func TestDecibels(t *testing.T) {
	p := mat.NewDense(1, 3, []float64{1, 0.1, 1e-12})
	db := PowerToDB(p, 1, 80)
	if db.At(0, 0) != 0 || math.Abs(db.At(0, 1)+10) > 1e-9 {
		t.Fatalf("dB = %v", mat.Formatted(db))
	}
	if db.At(0, 2) != -80 {
		t.Fatalf("floor = %v, want -80", db.At(0, 2))
	}
	back := DBToPower(db)
	if math.Abs(back.At(0, 1)-0.1) > 1e-12 {
		t.Fatalf("DBToPower = %v", back.At(0, 1))
	}
}

func TestDefaultConfig(t *testing.T) {
	tr, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	cfg := tr.Config()
	if cfg.SampleRate != 44100 || cfg.HopSize != 512 || cfg.FFTSize != 2048 || cfg.NumMels != 128 {
		t.Fatalf("DefaultConfig = %+v", cfg)
	}
	if cfg.HighFreq != 22050 {
		t.Fatalf("HighFreq = %v, want Nyquist 22050", cfg.HighFreq)
	}
}

func TestNewValidates(t *testing.T) {
	bad := []Config{
		{FFTSize: 256, HopSize: 64, NumMels: 10},
		{SampleRate: 8000, FFTSize: 256, HopSize: 512, NumMels: 10},
		{SampleRate: 8000, FFTSize: 256, HopSize: 64},
		{SampleRate: 8000, FFTSize: 256, HopSize: 64, NumMels: 10, LowFreq: 5000},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) = nil error", cfg)
		}
	}
}
