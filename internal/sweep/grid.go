package sweep

import (
	"fmt"
	"math"

	"sfhtools/internal/pars"
)

// Grid is the square grid of depth offsets explored by a sweep.
//
// Offsets i and j run over [-MaxOffset, MaxOffset]; i perturbs the blue
// bright depth and j the red bright depth, each by multiples of Step.
type Grid struct {
	Step      float64
	MaxOffset int
}

// DefaultGrid steps 0.05 mag out to +/-0.25: an 11x11 grid of 121 runs.
var DefaultGrid = Grid{Step: 0.05, MaxOffset: 5}

// GridFromDelta builds a grid stepping by step out to +/-maxDelta.
func GridFromDelta(step, maxDelta float64) (Grid, error) {
	if !(step > 0) {
		return Grid{}, fmt.Errorf("step must be > 0 (got %v)", step)
	}
	if maxDelta < 0 {
		return Grid{}, fmt.Errorf("max delta must be >= 0 (got %v)", maxDelta)
	}
	// The epsilon keeps a quotient like 0.25/0.05 from landing on 4.
	n := int(math.Floor(maxDelta/step + 1e-9))
	return Grid{Step: step, MaxOffset: n}, nil
}

// Validate rejects grids that enumerate nothing useful.
func (g Grid) Validate() error {
	if !(g.Step > 0) {
		return fmt.Errorf("grid step must be > 0 (got %v)", g.Step)
	}
	if g.MaxOffset < 0 {
		return fmt.Errorf("grid max offset must be >= 0 (got %d)", g.MaxOffset)
	}
	if g.Size() > 1000 {
		return fmt.Errorf("grid of %d points does not fit three-digit run ids", g.Size())
	}
	return nil
}

// Side is the number of offsets along one axis.
func (g Grid) Side() int { return 2*g.MaxOffset + 1 }

// Size is the number of grid points.
func (g Grid) Size() int { return g.Side() * g.Side() }

// GridPoint is one (blue offset, red offset) combination.
type GridPoint struct {
	// Index is the position in row-major order, starting at 0.
	Index int
	I     int
	J     int
}

// RunID is the zero-padded three-digit identifier used in file names.
func (p GridPoint) RunID() string { return fmt.Sprintf("%03d", p.Index) }

// Points enumerates the grid in row-major order: i outer, j inner, both
// ascending from -MaxOffset.
func (g Grid) Points() []GridPoint {
	pts := make([]GridPoint, 0, g.Size())
	idx := 0
	for i := -g.MaxOffset; i <= g.MaxOffset; i++ {
		for j := -g.MaxOffset; j <= g.MaxOffset; j++ {
			pts = append(pts, GridPoint{Index: idx, I: i, J: j})
			idx++
		}
	}
	return pts
}

// Perturb returns base with the bright depths shifted by the point's
// offsets. The faint depths are never changed.
func (g Grid) Perturb(base pars.Depths, p GridPoint) pars.Depths {
	return pars.Depths{
		BlueFaint:  base.BlueFaint,
		BlueBright: base.BlueBright + float64(p.I)*g.Step,
		RedFaint:   base.RedFaint,
		RedBright:  base.RedBright + float64(p.J)*g.Step,
	}
}
