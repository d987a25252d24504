package pathspec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout for additional spec tables:
//
//	specs:
//	  - name: ACME/v2/BANK_TRANSACTION
//	    provider: ACME
//	    version: v2
//	    separator: "|"
//	    paths:
//	      - $.statements[*].lines[*].date
//	      - $.statements[*].lines[*].amount
type File struct {
	Specs []SpecEntry `yaml:"specs"`
}

type SpecEntry struct {
	Name      string   `yaml:"name"`
	Provider  string   `yaml:"provider"`
	Version   string   `yaml:"version"`
	Separator string   `yaml:"separator,omitempty"`
	Paths     []string `yaml:"paths"`
}

// Load decodes and validates specs from r.
func Load(r io.Reader) ([]PathSpec, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode path spec file: %w", err)
	}

	specs := make([]PathSpec, 0, len(f.Specs))
	for i, e := range f.Specs {
		var opts []Option
		if e.Separator != "" {
			sep, size := utf8.DecodeRuneInString(e.Separator)
			if size != len(e.Separator) {
				return nil, fmt.Errorf("spec %d (%s): separator must be a single character", i, e.Name)
			}
			opts = append(opts, WithSeparator(sep))
		}
		s, err := New(e.Name, e.Provider, e.Version, e.Paths, opts...)
		if err != nil {
			return nil, fmt.Errorf("spec %d (%s): %w", i, e.Name, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string) ([]PathSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open path spec file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
