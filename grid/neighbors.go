package grid

// Offsets4 are the 4-connected neighbor deltas used by R's Dijkstra
// expansion and next-hop scan (spec.md §4.2).
var Offsets4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Offsets8 are the 8-connected neighbor deltas used by transport's
// proximity capture and fallback-reroute BFS (spec.md §4.3).
var Offsets8 = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// Neighbors4 appends the in-bounds 4-connected neighbor indices of (x,y) to
// dst and returns the result.
func (g *Grid) Neighbors4(x, y int, dst []int) []int {
	for _, o := range Offsets4 {
		nx, ny := x+o[0], y+o[1]
		if g.InBounds(nx, ny) {
			dst = append(dst, g.Idx(nx, ny))
		}
	}
	return dst
}

// Neighbors8 appends the in-bounds 8-connected neighbor indices of (x,y) to
// dst and returns the result.
func (g *Grid) Neighbors8(x, y int, dst []int) []int {
	for _, o := range Offsets8 {
		nx, ny := x+o[0], y+o[1]
		if g.InBounds(nx, ny) {
			dst = append(dst, g.Idx(nx, ny))
		}
	}
	return dst
}
