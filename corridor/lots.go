package corridor

import (
	"fmt"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
)

// buildLots converts the caller's flat LotSpecs into the engine's runtime
// Lot entities, populating CellToLotIndex and precomputing each lot's
// egress cell via a BFS to the nearest non-lot road cell (spec.md §4.5's
// "nearest 4-then-BFS road neighbor that is not a lot").
func buildLots(g *grid.Grid, specs []LotSpec, cfg *config.Config) ([]*components.Lot, error) {
	lots := make([]*components.Lot, len(specs))
	for i, spec := range specs {
		if len(spec.Cells) == 0 {
			return nil, fmt.Errorf("corridor: lot %d has no cells", i)
		}
		lot := &components.Lot{
			ID:         i,
			Cells:      append([]int(nil), spec.Cells...),
			AreaM2:     spec.AreaM2,
			CapacityKg: spec.AreaM2 * cfg.Lot.KgPerM2,
			IsPark:     spec.IsPark,
		}
		for _, c := range lot.Cells {
			g.CellToLotIndex[c] = i
		}
		lots[i] = lot
	}
	for _, lot := range lots {
		lot.EgressCellIdx = findEgressCell(g, lot.Cells, cfg.Grid.KThreshold)
	}
	return lots, nil
}

// findEgressCell runs a breadth-first search outward from a lot's cells and
// returns the first non-lot traversable road cell encountered. Returns -1
// if the lot is fully landlocked (a configuration error the caller should
// have prevented).
func findEgressCell(g *grid.Grid, cells []int, kThreshold float64) int {
	visited := make(map[int]bool, len(cells)*4)
	queue := make([]int, 0, len(cells)*4)
	for _, c := range cells {
		visited[c] = true
	}
	for _, c := range cells {
		x, y := g.XY(c)
		for _, n := range g.Neighbors4(x, y, nil) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}

	head := 0
	for head < len(queue) {
		cur := queue[head]
		head++
		if g.RegionMap[cur] != components.RegionLot && g.IsRoad(cur, kThreshold) {
			return cur
		}
		x, y := g.XY(cur)
		for _, n := range g.Neighbors4(x, y, nil) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return -1
}
