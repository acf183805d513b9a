// Package retile splits a point-cloud file onto a regular grid, moves every
// split tile into its cell directory and validates that no points were lost.
//
// A Retiler is a three-step pipeline:
//
//	tiling -> split_and_redistribute -> validate
//
// Splitting and header parsing are delegated to the pointcloud
// collaborators; the grid is used only for index arithmetic.
package retile

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/grid"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/pipeline"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/pointcloud"
	"github.com/eEcoLiDAR/lcMacroPipeline/pkg/models"
)

// Step names, in execution order.
const (
	StepTiling   = "tiling"
	StepSplit    = "split_and_redistribute"
	StepValidate = "validate"
)

// Bounds is the tiling scheme extent.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// String renders the bounds as "minx,miny,maxx,maxy".
func (b Bounds) String() string {
	parts := []string{
		strconv.FormatFloat(b.MinX, 'f', -1, 64),
		strconv.FormatFloat(b.MinY, 'f', -1, 64),
		strconv.FormatFloat(b.MaxX, 'f', -1, 64),
		strconv.FormatFloat(b.MaxY, 'f', -1, 64),
	}
	return strings.Join(parts, ",")
}

// ParseBounds parses "minx,miny,maxx,maxy".
func ParseBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, failure.Configf("bounds %q: want minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, failure.Configf("bounds %q: %v", s, err)
		}
		v[i] = f
	}
	return Bounds{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

// Options configures one retiling job.
type Options struct {
	InputFile    string
	OutputFolder string
	Bounds       Bounds
	NTilesSide   int
	// WriteRecord persists the retile record in the output folder.
	WriteRecord bool
}

// Job is the task context threaded through the steps.
type Job struct {
	InputFile    string
	OutputFolder string
	Grid         grid.Grid
	// Tiles holds the final location of every redistributed tile.
	Tiles  []string
	Record models.RetileRecord
}

// Retiler runs the retiling pipeline for a single input file.
type Retiler struct {
	opts     Options
	pipeline *pipeline.Pipeline[Job]
}

// New builds a Retiler using the given collaborators.
func New(opts Options, splitter pointcloud.Splitter, reader pointcloud.HeaderReader) *Retiler {
	return &Retiler{
		opts: opts,
		pipeline: pipeline.New("retile",
			pipeline.Step[Job]{Name: StepTiling, Fn: Tiling(opts.Bounds, opts.NTilesSide)},
			pipeline.Step[Job]{Name: StepSplit, Fn: SplitAndRedistribute(splitter, reader)},
			pipeline.Step[Job]{Name: StepValidate, Fn: Validate(reader, opts.WriteRecord)},
		),
	}
}

// Options returns the job configuration.
func (r *Retiler) Options() Options { return r.opts }

// Pipeline exposes the underlying step pipeline for status inspection.
func (r *Retiler) Pipeline() *pipeline.Pipeline[Job] { return r.pipeline }

// Name identifies the task by its input file.
func (r *Retiler) Name() string { return filepath.Base(r.opts.InputFile) }

// Execute runs all steps and returns the final task context. Step failures
// are returned unmodified.
func (r *Retiler) Execute(ctx context.Context) (Job, error) {
	job := Job{
		InputFile:    r.opts.InputFile,
		OutputFolder: r.opts.OutputFolder,
		Record:       models.NewRetileRecord(r.opts.InputFile),
	}
	return r.pipeline.Run(ctx, job)
}

// Run executes the pipeline and returns the models.RetileRecord.
func (r *Retiler) Run(ctx context.Context) (any, error) {
	job, err := r.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return job.Record, nil
}

// RemoteArgs renders the lcpipe invocation that performs this job on
// another host and prints the record as JSON.
func (r *Retiler) RemoteArgs() []string {
	args := []string{
		"retile", r.opts.InputFile,
		"--output", r.opts.OutputFolder,
		"--bounds", r.opts.Bounds.String(),
		"--tiles", strconv.Itoa(r.opts.NTilesSide),
		"--json",
	}
	if !r.opts.WriteRecord {
		args = append(args, "--no-record")
	}
	return args
}

// DecodeRemote parses the record printed by the remote invocation.
func (r *Retiler) DecodeRemote(stdout []byte) (any, error) {
	var rec models.RetileRecord
	if err := json.Unmarshal(stdout, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode remote record for %s: %w", failure.ErrTransport, r.Name(), err)
	}
	return rec, nil
}
