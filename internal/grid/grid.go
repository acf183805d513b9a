// Package grid partitions a rectangular bounding box into an n×n array of
// cells and maps points to cell indices.
package grid

import (
	"fmt"
	"math"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// Grid is a square tiling of a bounding box. The zero value is not usable;
// build one with New.
type Grid struct {
	MinX, MinY float64
	MaxX, MaxY float64
	// NTilesSide is the number of cells along each axis.
	NTilesSide int
	TileWidth  float64
	TileHeight float64
}

// New validates the bounds and cell count and returns the grid.
func New(minX, minY, maxX, maxY float64, nTilesSide int) (Grid, error) {
	for _, v := range []float64{minX, minY, maxX, maxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Grid{}, failure.Configf("grid bounds must be finite, got (%v, %v, %v, %v)", minX, minY, maxX, maxY)
		}
	}
	if maxX <= minX {
		return Grid{}, failure.Configf("grid max_x (%v) must be greater than min_x (%v)", maxX, minX)
	}
	if maxY <= minY {
		return Grid{}, failure.Configf("grid max_y (%v) must be greater than min_y (%v)", maxY, minY)
	}
	if nTilesSide < 1 {
		return Grid{}, failure.Configf("n_tiles_side must be at least 1, got %d", nTilesSide)
	}

	n := float64(nTilesSide)
	return Grid{
		MinX:       minX,
		MinY:       minY,
		MaxX:       maxX,
		MaxY:       maxY,
		NTilesSide: nTilesSide,
		TileWidth:  (maxX - minX) / n,
		TileHeight: (maxY - minY) / n,
	}, nil
}

// TileIndex returns the (i, j) cell containing the point. A point on the
// max edge is clamped into the last cell; points outside the bounds yield
// out-of-range indices.
func (g Grid) TileIndex(x, y float64) (int, int) {
	i := int(math.Floor((x - g.MinX) / g.TileWidth))
	j := int(math.Floor((y - g.MinY) / g.TileHeight))
	if i == g.NTilesSide {
		i--
	}
	if j == g.NTilesSide {
		j--
	}
	return i, j
}

// Mins returns the lower-left corner.
func (g Grid) Mins() (float64, float64) { return g.MinX, g.MinY }

// Maxs returns the upper-right corner.
func (g Grid) Maxs() (float64, float64) { return g.MaxX, g.MaxY }

// TileLength is the cell size along x, used as the splitter tile length.
func (g Grid) TileLength() float64 { return g.TileWidth }

// Contains reports whether (i, j) is a valid cell of the grid.
func (g Grid) Contains(i, j int) bool {
	return i >= 0 && j >= 0 && i < g.NTilesSide && j < g.NTilesSide
}

// TileName returns the canonical cell directory name.
func TileName(i, j int) string {
	return fmt.Sprintf("tile_%d_%d", i, j)
}
