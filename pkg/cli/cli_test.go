package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	ID    string `json:"id" yaml:"id"`
	Steps int    `json:"steps" yaml:"steps"`
}

func TestOutput(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatYAML, "id: abc\nsteps: 8\n"},
		{"", "id: abc\nsteps: 8\n"},
		{FormatJSON, "{\n  \"id\": \"abc\",\n  \"steps\": 8\n}\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := Output(sample{"abc", 8}, OutputOptions{Format: tt.format, Writer: &buf}); err != nil {
			t.Fatalf("%s: %v", tt.format, err)
		}
		if buf.String() != tt.want {
			t.Errorf("%s output = %q, want %q", tt.format, buf.String(), tt.want)
		}
	}
	if err := Output(sample{}, OutputOptions{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(sample{"x", 1}, OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	var got sample
	if err := json.Unmarshal(data, &got); err != nil || got.ID != "x" {
		t.Fatalf("file = %s, %v", data, err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatYAML, "json": FormatJSON, "text": FormatText} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("table"); err == nil {
		t.Error("expected error")
	}
}

func TestParseRequest(t *testing.T) {
	for _, tt := range []struct{ name, data string }{
		{"req.yaml", "id: r1\nsteps: 3\n"},
		{"req.json", `{"id":"r1","steps":3}`},
		{"req", `{"id":"r1","steps":3}`},
		{"req.txt", "id: r1\nsteps: 3\n"},
	} {
		var got sample
		if err := ParseRequest([]byte(tt.data), tt.name, &got); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != (sample{"r1", 3}) {
			t.Errorf("%s: got %+v", tt.name, got)
		}
	}
	var s sample
	if err := ParseRequest([]byte("{"), "bad.json", &s); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadRequestMissing(t *testing.T) {
	var s sample
	if err := LoadRequest(filepath.Join(t.TempDir(), "none.yaml"), &s); err == nil {
		t.Fatal("expected error")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12300 * time.Millisecond, "12.3s"},
		{4*time.Minute + 5*time.Second, "4m05.0s"},
		{61*time.Minute + 500*time.Millisecond, "61m00.5s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
	if got := FormatAudioLength(22050*3, 22050); got != "3.0s" {
		t.Errorf("FormatAudioLength = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{512: "512 B", 2048: "2.00 KB", 3 << 20: "3.00 MB", 5 << 30: "5.00 GB"}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{4, 3, 2, 1}); got != "█▆▃▁" {
		t.Errorf("Sparkline = %q", got)
	}
	if got := Sparkline([]float64{1, 1}); got != "▁▁" {
		t.Errorf("flat Sparkline = %q", got)
	}
}

func TestSummaryRender(t *testing.T) {
	out := Summary{
		Styles: NewStyles(DefaultTheme),
		Title:  "training",
		Rows:   []Row{{"examples", "12"}, {"final loss", "0.0123"}},
		Trend:  []float64{1, 0.5, 0.25},
		Footer: "saved models/fusion.msgpack",
	}.Render()
	for _, want := range []string{"training", "examples", "0.0123", "trend", "saved models/fusion.msgpack"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug logged without verbose: %s", buf.String())
	}
	NewLogger(&buf, true).DebugContext(context.Background(), "shown", "k", 1)
	if !strings.Contains(buf.String(), "msg=shown k=1") {
		t.Fatalf("log = %q", buf.String())
	}
}

func TestPaths(t *testing.T) {
	p := &Paths{Base: "/home/u/.songgen"}
	if p.ConfigFile() != "/home/u/.songgen/config.yaml" || p.CacheDir() != "/home/u/.songgen/cache" || p.ModelDir() != "/home/u/.songgen/models" {
		t.Errorf("paths = %s %s %s", p.ConfigFile(), p.CacheDir(), p.ModelDir())
	}
}
