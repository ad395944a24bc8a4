package cli

import (
	"os"
	"path/filepath"
)

// DefaultBaseDir is the per-user directory name under $HOME.
const DefaultBaseDir = ".songgen"

// Paths locates the per-user songgen directory:
//
//	~/.songgen/config.yaml
//	~/.songgen/cache    encoded-corpus cache
//	~/.songgen/models   default local artifact store
type Paths struct {
	Base string
}

// NewPaths resolves the base directory from the home directory.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{Base: filepath.Join(home, DefaultBaseDir)}, nil
}

func (p *Paths) ConfigFile() string { return filepath.Join(p.Base, "config.yaml") }
func (p *Paths) CacheDir() string   { return filepath.Join(p.Base, "cache") }
func (p *Paths) ModelDir() string   { return filepath.Join(p.Base, "models") }
