package generate

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Section is one named part of a song and how many generation steps it
// spans.
type Section struct {
	Name    string `yaml:"name" json:"name"`
	Repeats int    `yaml:"repeats" json:"repeats"`
}

// Plan is the ordered list of sections a song is generated from.
type Plan struct {
	Sections []Section `yaml:"sections" json:"sections"`
}

// DefaultPlan is intro, two verses, two choruses, two verses and an outro.
func DefaultPlan() Plan {
	return Plan{Sections: []Section{
		{Name: "intro", Repeats: 1},
		{Name: "verse", Repeats: 2},
		{Name: "chorus", Repeats: 2},
		{Name: "verse", Repeats: 2},
		{Name: "outro", Repeats: 1},
	}}
}

// Steps returns the total number of predict steps.
func (p Plan) Steps() int {
	n := 0
	for _, s := range p.Sections {
		n += s.Repeats
	}
	return n
}

// Validate rejects empty plans and non-positive repeat counts.
func (p Plan) Validate() error {
	if len(p.Sections) == 0 {
		return errors.New("generate: plan has no sections")
	}
	for i, s := range p.Sections {
		if s.Name == "" {
			return fmt.Errorf("generate: section %d has no name", i)
		}
		if s.Repeats < 1 {
			return fmt.Errorf("generate: section %q repeats %d times", s.Name, s.Repeats)
		}
	}
	return nil
}

// LoadPlan reads a YAML plan file.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("generate: parse plan %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}
