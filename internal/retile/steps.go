package retile

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/grid"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/pipeline"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/pointcloud"
	"github.com/eEcoLiDAR/lcMacroPipeline/pkg/models"
)

// Tiling configures the grid. It performs no I/O.
func Tiling(b Bounds, nTilesSide int) pipeline.StepFunc[Job] {
	return func(_ context.Context, job Job) (Job, error) {
		g, err := grid.New(b.MinX, b.MinY, b.MaxX, b.MaxY, nTilesSide)
		if err != nil {
			return job, err
		}
		job.Grid = g
		return job, nil
	}
}

// SplitAndRedistribute splits the input with the splitter and moves every
// produced tile into the cell directory containing the tile's centroid.
func SplitAndRedistribute(splitter pointcloud.Splitter, reader pointcloud.HeaderReader) pipeline.StepFunc[Job] {
	return func(ctx context.Context, job Job) (Job, error) {
		if err := requireFile(job.InputFile); err != nil {
			return job, err
		}
		if job.Grid.NTilesSide == 0 {
			return job, failure.Configf("grid is not configured, run %s first", StepTiling)
		}
		if err := os.MkdirAll(job.OutputFolder, 0755); err != nil {
			return job, fmt.Errorf("create output folder: %w", err)
		}

		minX, minY := job.Grid.Mins()
		req := pointcloud.SplitRequest{
			Input:         job.InputFile,
			OutputPattern: pointcloud.OutputPattern(job.InputFile, job.OutputFolder),
			OriginX:       minX,
			OriginY:       minY,
			Length:        job.Grid.TileLength(),
		}
		if err := splitter.Split(ctx, req); err != nil {
			return job, err
		}

		tiles, err := splitOutputs(job.InputFile, job.OutputFolder)
		if err != nil {
			return job, err
		}

		moved := make([]string, 0, len(tiles))
		for _, tile := range tiles {
			h, err := reader.ReadHeader(tile)
			if err != nil {
				return job, fmt.Errorf("read split tile: %w", err)
			}

			cx, cy := h.Centroid()
			i, j := job.Grid.TileIndex(cx, cy)
			if !job.Grid.Contains(i, j) {
				log.Printf("[retile] centroid (%.3f, %.3f) of %s lies outside the grid", cx, cy, filepath.Base(tile))
			}

			cellDir := filepath.Join(job.OutputFolder, grid.TileName(i, j))
			if err := os.MkdirAll(cellDir, 0755); err != nil {
				return job, fmt.Errorf("create cell directory: %w", err)
			}
			dst := filepath.Join(cellDir, filepath.Base(tile))
			if err := os.Rename(tile, dst); err != nil {
				return job, fmt.Errorf("move tile to %s: %w", cellDir, err)
			}
			moved = append(moved, dst)
		}

		job.Tiles = moved
		return job, nil
	}
}

// Validate compares the input's point count with the sum over every tile
// of the input found in the cell directories. A mismatch is reported in the
// record, never as an error.
func Validate(reader pointcloud.HeaderReader, writeRecord bool) pipeline.StepFunc[Job] {
	return func(_ context.Context, job Job) (Job, error) {
		if err := requireFile(job.InputFile); err != nil {
			return job, err
		}
		parent, err := reader.ReadHeader(job.InputFile)
		if err != nil {
			return job, fmt.Errorf("read input header: %w", err)
		}

		tiles, err := cellTiles(job.OutputFolder, stem(job.InputFile))
		if err != nil {
			return job, err
		}

		rec := models.NewRetileRecord(job.InputFile)
		var split uint64
		for _, tile := range tiles {
			h, err := reader.ReadHeader(tile)
			if err != nil {
				log.Printf("[retile] failure to open %s: %v", tile, err)
				continue
			}
			split += h.PointCount
			rec.RedistributedTo = append(rec.RedistributedTo, filepath.Base(filepath.Dir(tile)))
		}
		rec.Validated = split == parent.PointCount
		if !rec.Validated {
			log.Printf("[retile] %s: %d points in input, %d in tiles", filepath.Base(job.InputFile), parent.PointCount, split)
		}

		if writeRecord {
			if _, err := models.WriteRecord(job.OutputFolder, rec); err != nil {
				return job, err
			}
		}
		job.Record = rec
		return job, nil
	}
}

func requireFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failure.NotFound("input file", path)
		}
		return fmt.Errorf("stat input file: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return failure.NotFound("input file", path)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitOutputs lists the files the splitter produced for input in dir.
func splitOutputs(input, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list output folder: %w", err)
	}

	inName := filepath.Base(input)
	inExt := filepath.Ext(inName)
	inStem := stem(input)

	var tiles []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if name == inName || !strings.EqualFold(filepath.Ext(name), inExt) {
			continue
		}
		if !strings.HasPrefix(stem(name), inStem) {
			continue
		}
		tiles = append(tiles, filepath.Join(dir, name))
	}
	return tiles, nil
}

// cellTiles returns the files under dir/tile_*/ whose name starts with
// prefix, in lexical order.
func cellTiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list output folder: %w", err)
	}

	var tiles []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "tile_") {
			continue
		}
		cell := filepath.Join(dir, e.Name())
		files, err := os.ReadDir(cell)
		if err != nil {
			return nil, fmt.Errorf("list cell directory: %w", err)
		}
		for _, f := range files {
			if f.Type().IsRegular() && strings.HasPrefix(f.Name(), prefix) {
				tiles = append(tiles, filepath.Join(cell, f.Name()))
			}
		}
	}
	sort.Strings(tiles)
	return tiles, nil
}
