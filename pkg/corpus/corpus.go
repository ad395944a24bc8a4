// Package corpus locates the per-track source files of a training corpus.
//
// The pre-processing stage writes one MIDI file and one spectrogram array
// per (recording, role) pair:
//
//	midi/
//	├── song01_vocals.mid
//	├── song01_drums.mid
//	└── ...
//	spectrograms/
//	├── song01_vocals.npy
//	└── ...
//
// Recording names may contain underscores; the role is always the
// segment after the last underscore.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haivivi/songgen/pkg/track"
)

// File extensions of corpus files.
const (
	MIDIExt        = ".mid"
	SpectrogramExt = ".npy"
)

// Layout names the directories holding a corpus.
type Layout struct {
	// MIDIDir holds <recording>_<role>.mid files.
	MIDIDir string `yaml:"midi_dir"`
	// SpectrogramDir holds <recording>_<role>.npy files.
	SpectrogramDir string `yaml:"spectrogram_dir"`
}

// MIDIPath returns the MIDI file path for (recording, role).
func (l Layout) MIDIPath(recording string, role track.Role) string {
	return filepath.Join(l.MIDIDir, FileName(recording, role, MIDIExt))
}

// SpectrogramPath returns the spectrogram file path for (recording, role).
func (l Layout) SpectrogramPath(recording string, role track.Role) string {
	return filepath.Join(l.SpectrogramDir, FileName(recording, role, SpectrogramExt))
}

// FileName builds "<recording>_<role><ext>".
func FileName(recording string, role track.Role, ext string) string {
	return recording + "_" + string(role) + ext
}

// ParseFileName splits a corpus file name into recording and role. It
// returns ok=false when the name has the wrong extension or its role is
// not one of roles.
func ParseFileName(name, ext string, roles []track.Role) (recording string, role track.Role, ok bool) {
	if !strings.EqualFold(filepath.Ext(name), ext) {
		return "", "", false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndexByte(stem, '_')
	if i <= 0 || i == len(stem)-1 {
		return "", "", false
	}
	r := track.Role(stem[i+1:])
	for _, known := range roles {
		if known == r {
			return stem[:i], r, true
		}
	}
	return "", "", false
}

// Recordings scans both directories and returns the sorted, de-duplicated
// names of every recording that has at least one file for one of roles.
// A directory that does not exist contributes nothing; if neither exists
// an error is returned.
func (l Layout) Recordings(roles []track.Role) ([]string, error) {
	seen := make(map[string]bool)
	missing := 0
	for _, d := range []struct{ dir, ext string }{
		{l.MIDIDir, MIDIExt},
		{l.SpectrogramDir, SpectrogramExt},
	} {
		if d.dir == "" {
			missing++
			continue
		}
		entries, err := os.ReadDir(d.dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				missing++
				continue
			}
			return nil, fmt.Errorf("corpus: scan %s: %w", d.dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if rec, _, ok := ParseFileName(e.Name(), d.ext, roles); ok {
				seen[rec] = true
			}
		}
	}
	if missing == 2 {
		return nil, fmt.Errorf("corpus: neither %q nor %q exists", l.MIDIDir, l.SpectrogramDir)
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
