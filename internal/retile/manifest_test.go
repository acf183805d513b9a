package retile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

const testManifest = `
output_folder: retiled
grid:
  min_x: -113107.81
  min_y: 214783.87
  max_x: 398892.19
  max_y: 726783.87
  n_tiles_side: 256
inputs:
  - raw/*.LAZ
  - extra/single.las
`

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "raw", "C_25GN2.LAZ"))
	touch(t, filepath.Join(dir, "raw", "C_25GN1.LAZ"))
	touch(t, filepath.Join(dir, "raw", "notes.txt"))

	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if !m.WriteRecords() {
		t.Error("WriteRecords() should default to true")
	}

	opts, err := m.JobOptions()
	if err != nil {
		t.Fatalf("JobOptions failed: %v", err)
	}

	var inputs []string
	for _, o := range opts {
		inputs = append(inputs, o.InputFile)
		if o.OutputFolder != filepath.Join(dir, "retiled") {
			t.Errorf("OutputFolder = %q", o.OutputFolder)
		}
		if o.NTilesSide != 256 || o.Bounds.MinX != -113107.81 || o.Bounds.MaxY != 726783.87 {
			t.Errorf("job options = %+v", o)
		}
	}
	want := []string{
		filepath.Join(dir, "raw", "C_25GN1.LAZ"),
		filepath.Join(dir, "raw", "C_25GN2.LAZ"),
		// literal paths are kept even when missing
		filepath.Join(dir, "extra", "single.las"),
	}
	if diff := cmp.Diff(want, inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}

	rs, err := m.Retilers(nil, nil)
	if err != nil {
		t.Fatalf("Retilers failed: %v", err)
	}
	if len(rs) != 3 || rs[0].Name() != "C_25GN1.LAZ" {
		t.Errorf("Retilers built %d jobs, first %q", len(rs), rs[0].Name())
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "none.yaml"))
	if !errors.Is(err, failure.ErrNotFound) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"unknown key", "output_folder: o\nworkers: 4\ninputs: [a.las]\ngrid: {min_x: 0, min_y: 0, max_x: 1, max_y: 1, n_tiles_side: 1}\n"},
		{"no output", "inputs: [a.las]\ngrid: {min_x: 0, min_y: 0, max_x: 1, max_y: 1, n_tiles_side: 1}\n"},
		{"no inputs", "output_folder: o\ngrid: {min_x: 0, min_y: 0, max_x: 1, max_y: 1, n_tiles_side: 1}\n"},
		{"zero tiles", "output_folder: o\ninputs: [a.las]\ngrid: {min_x: 0, min_y: 0, max_x: 1, max_y: 1, n_tiles_side: 0}\n"},
		{"inverted grid", "output_folder: o\ninputs: [a.las]\ngrid: {min_x: 5, min_y: 0, max_x: 1, max_y: 1, n_tiles_side: 2}\n"},
		{"not yaml", "output_folder: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.data), ""); !errors.Is(err, failure.ErrConfig) {
				t.Errorf("error = %v, want configuration error", err)
			}
		})
	}
}

func TestManifest_WriteRecordFalse(t *testing.T) {
	m, err := ParseManifest([]byte("output_folder: /o\nwrite_record: false\ninputs: [/a.las]\ngrid: {min_x: 0, min_y: 0, max_x: 1, max_y: 1, n_tiles_side: 1}\n"), "/base")
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	opts, err := m.JobOptions()
	if err != nil {
		t.Fatalf("JobOptions failed: %v", err)
	}
	if opts[0].WriteRecord {
		t.Error("WriteRecord should be false")
	}
	if opts[0].InputFile != "/a.las" || opts[0].OutputFolder != "/o" {
		t.Errorf("absolute paths rewritten: %+v", opts[0])
	}
}

func TestResolveInputs_Deduplicates(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.las"))
	touch(t, filepath.Join(dir, "b.las"))

	m := &Manifest{Inputs: []string{"*.las", "a.las", "missing/*.las"}, baseDir: dir}
	got, err := m.ResolveInputs()
	if err != nil {
		t.Fatalf("ResolveInputs failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.las"), filepath.Join(dir, "b.las")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}

	m = &Manifest{Inputs: []string{"missing/*.las"}, baseDir: dir}
	if _, err := m.ResolveInputs(); !errors.Is(err, failure.ErrConfig) {
		t.Errorf("error = %v, want configuration error", err)
	}
}
