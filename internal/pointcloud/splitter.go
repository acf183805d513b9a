package pointcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/exec"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// Placeholder is replaced by the splitter with the tile number.
const Placeholder = "#"

// SplitRequest describes one splitting job.
type SplitRequest struct {
	Input string
	// OutputPattern is the output path containing Placeholder.
	OutputPattern string
	OriginX       float64
	OriginY       float64
	// Length is the side of the square split tiles.
	Length float64
}

// Splitter cuts a point cloud into square tiles.
type Splitter interface {
	Split(ctx context.Context, req SplitRequest) error
}

// OutputPattern returns "<outDir>/<stem>_#<ext>" for input.
func OutputPattern(input, outDir string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(outDir, stem+"_"+Placeholder+ext)
}

// PDALSplitter runs filters.splitter through the pdal command line.
type PDALSplitter struct {
	runner exec.CommandRunner
	binary string
}

// NewPDALSplitter returns a splitter invoking binary (default "pdal").
func NewPDALSplitter(runner exec.CommandRunner, binary string) *PDALSplitter {
	if binary == "" {
		binary = "pdal"
	}
	return &PDALSplitter{runner: runner, binary: binary}
}

type pdalPipeline struct {
	Pipeline []any `json:"pipeline"`
}

// PipelineJSON renders the PDAL pipeline for req. Scales are forwarded from
// the input and offsets are computed by the writer.
func PipelineJSON(req SplitRequest) ([]byte, error) {
	if req.Length <= 0 {
		return nil, failure.Configf("split length must be positive, got %v", req.Length)
	}
	if !strings.Contains(filepath.Base(req.OutputPattern), Placeholder) {
		return nil, failure.Configf("output pattern %q has no %q placeholder", req.OutputPattern, Placeholder)
	}

	p := pdalPipeline{
		Pipeline: []any{
			filepath.ToSlash(req.Input),
			map[string]any{
				"type":     "filters.splitter",
				"origin_x": formatFloat(req.OriginX),
				"origin_y": formatFloat(req.OriginY),
				"length":   formatFloat(req.Length),
			},
			map[string]any{
				"type":     "writers.las",
				"filename": filepath.ToSlash(req.OutputPattern),
				"forward":  []string{"scale_x", "scale_y", "scale_z"},
				"offset_x": "auto",
				"offset_y": "auto",
				"offset_z": "auto",
			},
		},
	}
	return json.Marshal(p)
}

// Split runs the pipeline, feeding its JSON on stdin.
func (s *PDALSplitter) Split(ctx context.Context, req SplitRequest) error {
	spec, err := PipelineJSON(req)
	if err != nil {
		return err
	}

	cmd := exec.Command{
		Name:  s.binary,
		Args:  []string{"pipeline", "--stdin"},
		Stdin: spec,
	}
	if _, err := s.runner.Run(ctx, cmd); err != nil {
		log.Printf("[pdal] split of %s failed: %v", req.Input, err)
		return fmt.Errorf("%w: split %s: %w", failure.ErrTransport, req.Input, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ Splitter = (*PDALSplitter)(nil)
