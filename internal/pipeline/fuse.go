package pipeline

import (
	"math"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

// Fuse combines 1..N independently captured samples of the same finger
// into a single representative set. All points are pooled, sorted for a
// deterministic input order, and clustered over (x, y) with DBSCAN.
// Each cluster collapses to its mean position and the circular mean of
// its angles.
//
// Policy: points that land in no cluster are treated as capture noise
// and dropped. This trades recall for confidence — a minutia that no
// second sample corroborates is more likely an artifact than a feature.
//
// An empty result is not an error at this layer; the caller decides
// whether an empty fusion is fatal.
func Fuse(samples []minutiae.Set, eps float64, minSamples int) minutiae.Set {
	var all minutiae.Set
	for _, s := range samples {
		all = append(all, s...)
	}
	if len(all) == 0 {
		return nil
	}
	all = all.Sorted()

	labels, clusterCount := dbscan(all, eps, minSamples)

	fused := make(minutiae.Set, 0, clusterCount)
	for cid := 1; cid <= clusterCount; cid++ {
		var sumX, sumY float64
		var thetas []int
		for i, label := range labels {
			if label != cid {
				continue
			}
			sumX += float64(all[i].X)
			sumY += float64(all[i].Y)
			thetas = append(thetas, all[i].Theta)
		}
		if len(thetas) == 0 {
			continue
		}
		n := float64(len(thetas))
		fused = append(fused, minutiae.Point{
			X:     int(math.Round(sumX / n)),
			Y:     int(math.Round(sumY / n)),
			Theta: minutiae.CircularMean(thetas),
		})
	}

	return fused.Sorted()
}

// dbscan labels each point with a cluster id (1..n), or noise (-1).
// Distance is 2D Euclidean over (x, y); theta plays no part in
// clustering. Returns the labels and the number of clusters found.
func dbscan(points minutiae.Set, eps float64, minPts int) (labels []int, clusterCount int) {
	n := len(points)
	labels = make([]int, n) // 0=unvisited, -1=noise, >0=cluster id

	index := newCellIndex(eps)
	index.build(points)

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}
		neighbors := index.regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = -1
			continue
		}
		clusterID++
		expandCluster(points, index, labels, i, neighbors, clusterID, eps, minPts)
	}
	return labels, clusterID
}

// expandCluster grows a cluster outward from a core point using a
// queue-based sweep over the neighbor list.
func expandCluster(points minutiae.Set, index *cellIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, eps float64, minPts int) {

	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == -1 {
			labels[idx] = clusterID // noise becomes a border point
		}
		if labels[idx] != 0 {
			continue
		}

		labels[idx] = clusterID
		more := index.regionQuery(points, idx, eps)
		if len(more) >= minPts {
			neighbors = append(neighbors, more...)
		}
	}
}

// cellIndex is a regular-grid spatial index for neighborhood queries.
// Cell size matches eps so a query only inspects the 3x3 cell block
// around the probe point.
type cellIndex struct {
	cellSize float64
	grid     map[int64][]int
}

func newCellIndex(cellSize float64) *cellIndex {
	return &cellIndex{cellSize: cellSize, grid: make(map[int64][]int)}
}

func (ci *cellIndex) build(points minutiae.Set) {
	for i, p := range points {
		id := ci.cellID(int64(math.Floor(float64(p.X)/ci.cellSize)), int64(math.Floor(float64(p.Y)/ci.cellSize)))
		ci.grid[id] = append(ci.grid[id], i)
	}
}

// cellID pairs two signed cell coordinates into one key using zigzag
// encoding followed by Szudzik's pairing function.
func (ci *cellIndex) cellID(cx, cy int64) int64 {
	var a, b int64
	if cx >= 0 {
		a = 2 * cx
	} else {
		a = -2*cx - 1
	}
	if cy >= 0 {
		b = 2 * cy
	} else {
		b = -2*cy - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// regionQuery returns the indices of all points within eps of points[idx].
func (ci *cellIndex) regionQuery(points minutiae.Set, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	baseX := int64(math.Floor(float64(p.X) / ci.cellSize))
	baseY := int64(math.Floor(float64(p.Y) / ci.cellSize))

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, ni := range ci.grid[ci.cellID(baseX+dx, baseY+dy)] {
				q := points[ni]
				ddx := float64(q.X - p.X)
				ddy := float64(q.Y - p.Y)
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, ni)
				}
			}
		}
	}
	return neighbors
}
