package grid

import (
	"testing"

	"github.com/pthm-cable/pharr-corridor/components"
)

func TestIdxXYRoundTrip(t *testing.T) {
	g := New(16, 5.0, 0, 0)
	for y := 0; y < g.N; y++ {
		for x := 0; x < g.N; x++ {
			idx := g.Idx(x, y)
			gx, gy := g.XY(idx)
			if gx != x || gy != y {
				t.Fatalf("XY(Idx(%d,%d)) = (%d,%d)", x, y, gx, gy)
			}
		}
	}
}

func TestWorldGridRoundTrip(t *testing.T) {
	g := New(16, 5.0, 100, 200)
	wx, wy := g.GridToWorld(3, 4)
	gx, gy := g.WorldToGrid(wx, wy)
	if gx != 3 || gy != 4 {
		t.Fatalf("WorldToGrid(GridToWorld(3,4)) = (%d,%d)", gx, gy)
	}
}

func TestIsTraversableLotAlwaysTrue(t *testing.T) {
	g := New(4, 1.0, 0, 0)
	idx := g.Idx(1, 1)
	g.RegionMap[idx] = components.RegionLot
	g.Kxx[idx] = 0
	g.Kyy[idx] = 0
	if !g.IsTraversable(idx, 0.01) {
		t.Error("lot cell with zero conductance should still be traversable")
	}
}

func TestIsTraversableRoadThreshold(t *testing.T) {
	g := New(4, 1.0, 0, 0)
	idx := g.Idx(2, 2)
	g.Kxx[idx] = 0.005
	g.Kyy[idx] = 0.002
	if g.IsTraversable(idx, 0.01) {
		t.Error("below-threshold non-lot cell should not be traversable")
	}
	g.Kxx[idx] = 0.02
	if !g.IsTraversable(idx, 0.01) {
		t.Error("above-threshold cell should be traversable")
	}
}

func TestBuildSparseIndices(t *testing.T) {
	g := New(4, 1.0, 0, 0)
	roadIdx := g.Idx(0, 0)
	g.Kxx[roadIdx] = 1.0
	lotIdx := g.Idx(1, 0)
	g.RegionMap[lotIdx] = components.RegionLot

	g.BuildSparseIndices(0.01)

	if len(g.LotCellIndices) != 1 || g.LotCellIndices[0] != lotIdx {
		t.Errorf("expected lot indices [%d], got %v", lotIdx, g.LotCellIndices)
	}
	foundRoad := false
	for _, i := range g.RoadCellIndices {
		if i == roadIdx {
			foundRoad = true
		}
	}
	if !foundRoad {
		t.Error("expected road cell in RoadCellIndices")
	}
}

func TestEnforceNonNegative(t *testing.T) {
	g := New(4, 1.0, 0, 0)
	g.RhoRestricted[0] = -5
	g.RhoCleared[0] = 3
	g.EnforceNonNegative()
	if g.RhoRestricted[0] != 0 {
		t.Errorf("expected clamp to 0, got %f", g.RhoRestricted[0])
	}
	if g.RhoCleared[0] != 3 {
		t.Errorf("expected unchanged positive value, got %f", g.RhoCleared[0])
	}
}

func TestTotalMassSumsAllFields(t *testing.T) {
	g := New(4, 1.0, 0, 0)
	g.RhoRestricted[0] = 10
	g.RhoRestrictedPreLot[1] = 20
	g.RhoRestrictedLot[2] = 30
	g.RhoParkWait[3] = 40
	g.RhoCleared[4] = 50
	if got := g.TotalMass(); got != 150 {
		t.Errorf("expected total mass 150, got %f", got)
	}
}
