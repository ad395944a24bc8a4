package model

import (
	"context"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/songgen/pkg/songerr"
	"github.com/haivivi/songgen/pkg/storage"
)

// ArtifactVersion is the current artifact format.
const ArtifactVersion = 1

type artifact struct {
	Version int           `msgpack:"version"`
	Config  Config        `msgpack:"config"`
	Params  []paramRecord `msgpack:"params"`
}

type paramRecord struct {
	Name string    `msgpack:"name"`
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

// Encode writes m as a msgpack artifact.
func (m *Model) Encode(w io.Writer) error {
	a := artifact{Version: ArtifactVersion, Config: m.cfg}
	for _, p := range m.params {
		r, c := p.W.Dims()
		a.Params = append(a.Params, paramRecord{Name: p.Name, Rows: r, Cols: c, Data: mat.DenseCopyOf(p.W).RawMatrix().Data})
	}
	return msgpack.NewEncoder(w).Encode(&a)
}

// Decode reads an artifact written by Encode.
func Decode(r io.Reader) (*Model, error) {
	var a artifact
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("artifact version %d, want %d", a.Version, ArtifactVersion)
	}
	m, err := New(a.Config)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]paramRecord, len(a.Params))
	for _, p := range a.Params {
		byName[p.Name] = p
	}
	if len(byName) != len(m.params) {
		return nil, fmt.Errorf("artifact has %d parameters, model has %d", len(byName), len(m.params))
	}
	for _, p := range m.params {
		rec, ok := byName[p.Name]
		if !ok {
			return nil, fmt.Errorf("artifact is missing parameter %s", p.Name)
		}
		r, c := p.W.Dims()
		if rec.Rows != r || rec.Cols != c || len(rec.Data) != r*c {
			return nil, fmt.Errorf("parameter %s is %d×%d, want %d×%d", p.Name, rec.Rows, rec.Cols, r, c)
		}
		p.W.Copy(mat.NewDense(r, c, rec.Data))
	}
	return m, nil
}

// Save writes m to path in store.
func Save(ctx context.Context, store storage.FileStore, path string, m *Model) error {
	w, err := store.Write(ctx, path)
	if err != nil {
		return songerr.Model("save-model", err)
	}
	if err := m.Encode(w); err != nil {
		storage.Abort(w, err)
		return songerr.Model("save-model", err)
	}
	if err := w.Close(); err != nil {
		return songerr.Model("save-model", err)
	}
	return nil
}

// Load reads the model at path in store.
func Load(ctx context.Context, store storage.FileStore, path string) (*Model, error) {
	r, err := store.Read(ctx, path)
	if err != nil {
		return nil, songerr.Model("load-model", err)
	}
	defer r.Close()
	m, err := Decode(r)
	if err != nil {
		return nil, songerr.Model("load-model", err)
	}
	return m, nil
}
