// Package layout keeps graph view state (node positions, zoom, pan) in
// sync with the stored layout: initial placement, merging and debounced
// persistence.
package layout

import (
	"math"
	"sort"
	"strconv"

	"github.com/raphaelgruber/circles/internal/models"
)

// Force layout parameters.
const (
	forceArea       = 1000.0 * 1000.0
	forceIterations = 150
	minDistance     = 0.01
)

// ForcePlace computes positions for every node of graph with a
// Fruchterman-Reingold pass. Nodes present in pinned keep their position
// and only push or pull the free nodes. The result is deterministic.
func ForcePlace(graph models.GraphResponse, pinned map[string]models.Point) map[string]models.Point {
	n := len(graph.Nodes)
	out := make(map[string]models.Point, n)
	if n == 0 {
		return out
	}

	ids := make([]string, n)
	for i, node := range graph.Nodes {
		ids[i] = strconv.FormatInt(node.ID, 10)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	k := math.Sqrt(forceArea / float64(n))
	pos := make([]models.Point, n)
	fixed := make([]bool, n)

	center := centroid(pinned, index)
	radius := k * math.Sqrt(float64(n))
	for i, id := range ids {
		if p, ok := pinned[id]; ok {
			pos[i] = p
			fixed[i] = true
			continue
		}
		// Spread free nodes on a circle around the pinned centroid so no two
		// start at the same spot.
		angle := 2 * math.Pi * float64(i) / float64(n)
		pos[i] = models.Point{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}

	var edges [][2]int
	for _, e := range graph.Edges {
		s, ok1 := index[strconv.FormatInt(e.Source, 10)]
		t, ok2 := index[strconv.FormatInt(e.Target, 10)]
		if ok1 && ok2 && s != t {
			edges = append(edges, [2]int{s, t})
		}
	}

	temp := radius / 10
	cooling := temp / float64(forceIterations+1)
	disp := make([]models.Point, n)
	for iter := 0; iter < forceIterations; iter++ {
		for i := range disp {
			disp[i] = models.Point{}
		}

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy, d := delta(pos[i], pos[j], i, j)
				f := k * k / d
				disp[i].X += dx / d * f
				disp[i].Y += dy / d * f
				disp[j].X -= dx / d * f
				disp[j].Y -= dy / d * f
			}
		}

		for _, e := range edges {
			i, j := e[0], e[1]
			dx, dy, d := delta(pos[i], pos[j], i, j)
			f := d * d / k
			disp[i].X -= dx / d * f
			disp[i].Y -= dy / d * f
			disp[j].X += dx / d * f
			disp[j].Y += dy / d * f
		}

		for i := range pos {
			if fixed[i] {
				continue
			}
			l := math.Hypot(disp[i].X, disp[i].Y)
			if l < minDistance {
				continue
			}
			step := math.Min(l, temp)
			pos[i].X += disp[i].X / l * step
			pos[i].Y += disp[i].Y / l * step
		}
		temp -= cooling
	}

	for i, id := range ids {
		out[id] = pos[i]
	}
	return out
}

// delta returns the vector from b to a and its length, nudging coincident
// points apart deterministically.
func delta(a, b models.Point, i, j int) (float64, float64, float64) {
	dx, dy := a.X-b.X, a.Y-b.Y
	d := math.Hypot(dx, dy)
	if d < minDistance {
		dx = float64(i-j) * minDistance
		dy = minDistance
		d = math.Hypot(dx, dy)
	}
	return dx, dy, d
}

func centroid(pinned map[string]models.Point, index map[string]int) models.Point {
	var c models.Point
	count := 0
	for id, p := range pinned {
		if _, ok := index[id]; !ok {
			continue
		}
		c.X += p.X
		c.Y += p.Y
		count++
	}
	if count == 0 {
		return c
	}
	return models.Point{X: c.X / float64(count), Y: c.Y / float64(count)}
}

// lessID orders numeric ids numerically and anything else lexically.
func lessID(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}
