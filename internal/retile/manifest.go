package retile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/grid"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/pointcloud"
)

// Manifest describes a batch of retiling jobs sharing one tiling scheme.
//
//	output_folder: /data/retiled
//	grid:
//	  min_x: -113107.81
//	  min_y: 214783.87
//	  max_x: 398892.19
//	  max_y: 726783.87
//	  n_tiles_side: 256
//	write_record: true
//	inputs:
//	  - /data/raw/*.LAZ
type Manifest struct {
	OutputFolder string   `yaml:"output_folder"`
	Grid         GridSpec `yaml:"grid"`
	WriteRecord  *bool    `yaml:"write_record"`
	Inputs       []string `yaml:"inputs"`

	// baseDir resolves relative paths.
	baseDir string
}

// GridSpec is the tiling scheme section of a manifest.
type GridSpec struct {
	MinX       float64 `yaml:"min_x"`
	MinY       float64 `yaml:"min_y"`
	MaxX       float64 `yaml:"max_x"`
	MaxY       float64 `yaml:"max_y"`
	NTilesSide int     `yaml:"n_tiles_side"`
}

// Bounds returns the grid extent.
func (g GridSpec) Bounds() Bounds {
	return Bounds{MinX: g.MinX, MinY: g.MinY, MaxX: g.MaxX, MaxY: g.MaxY}
}

// LoadManifest reads and validates a manifest file. Relative paths inside
// it are resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.NotFound("manifest", path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// ParseManifest decodes a manifest. Unknown keys are rejected.
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse manifest: %w", failure.ErrConfig, err)
	}
	m.baseDir = baseDir

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest before any job is built.
func (m *Manifest) Validate() error {
	if m.OutputFolder == "" {
		return failure.Configf("manifest: output_folder is required")
	}
	if len(m.Inputs) == 0 {
		return failure.Configf("manifest: inputs is empty")
	}
	g := m.Grid
	if _, err := grid.New(g.MinX, g.MinY, g.MaxX, g.MaxY, g.NTilesSide); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

// WriteRecords reports whether retile records are persisted (default true).
func (m *Manifest) WriteRecords() bool {
	return m.WriteRecord == nil || *m.WriteRecord
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.baseDir == "" {
		return p
	}
	return filepath.Join(m.baseDir, p)
}

// ResolveInputs expands glob patterns and returns the input files in order
// of appearance, each pattern's matches sorted, duplicates dropped.
// Literal paths are kept even when missing; their job reports not-found.
func (m *Manifest) ResolveInputs() ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, in := range m.Inputs {
		p := m.resolve(in)
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, failure.Configf("manifest: bad input pattern %q: %v", in, err)
		}
		if len(matches) == 0 {
			if hasMeta(p) {
				log.Printf("[retile] input pattern %q matched no files", in)
				continue
			}
			matches = []string{p}
		}
		sort.Strings(matches)
		for _, f := range matches {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	if len(files) == 0 {
		return nil, failure.Configf("manifest: no input files")
	}
	return files, nil
}

// JobOptions returns one Options per resolved input.
func (m *Manifest) JobOptions() ([]Options, error) {
	inputs, err := m.ResolveInputs()
	if err != nil {
		return nil, err
	}

	opts := make([]Options, len(inputs))
	for i, in := range inputs {
		opts[i] = Options{
			InputFile:    in,
			OutputFolder: m.resolve(m.OutputFolder),
			Bounds:       m.Grid.Bounds(),
			NTilesSide:   m.Grid.NTilesSide,
			WriteRecord:  m.WriteRecords(),
		}
	}
	return opts, nil
}

// Retilers builds one Retiler per input.
func (m *Manifest) Retilers(splitter pointcloud.Splitter, reader pointcloud.HeaderReader) ([]*Retiler, error) {
	opts, err := m.JobOptions()
	if err != nil {
		return nil, err
	}
	rs := make([]*Retiler, len(opts))
	for i, o := range opts {
		rs[i] = New(o, splitter, reader)
	}
	return rs, nil
}

func hasMeta(p string) bool {
	for _, c := range p {
		switch c {
		case '*', '?', '[':
			return true
		}
	}
	return false
}
