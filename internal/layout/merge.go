package layout

import (
	"maps"

	"github.com/raphaelgruber/circles/internal/models"
)

// Zoom bounds and default of a graph view.
const (
	DefaultZoom = 1.0
	MinZoom     = 0.5
	MaxZoom     = 2.0
)

// Placement is the starting view state of a graph view.
type Placement struct {
	Layout models.GraphLayout `json:"layout"`
	// Fit asks the view to fit all nodes because no zoom or pan was stored.
	Fit bool `json:"fit"`
}

// Initial computes the starting view for graph. Stored positions are
// applied to matching nodes; unmatched nodes, or all nodes when nothing is
// stored, are placed by a force-directed pass.
func Initial(stored *models.GraphLayout, graph models.GraphResponse) Placement {
	pinned := map[string]models.Point{}
	zoom, pan, fit := DefaultZoom, models.Point{}, true

	if stored.HasNodes() {
		pinned = stored.Nodes
		if stored.Zoom > 0 {
			zoom = ClampZoom(stored.Zoom)
			pan = stored.Pan
			fit = false
		}
	}

	return Placement{
		Layout: models.GraphLayout{
			Nodes: ForcePlace(graph, pinned),
			Zoom:  zoom,
			Pan:   pan,
		},
		Fit: fit,
	}
}

// Merge overlays live positions on the stored layout and takes the live
// zoom and pan. Stored nodes absent from the live view keep their position.
// The result is the full snapshot to persist.
func Merge(stored *models.GraphLayout, live map[string]models.Point, zoom float64, pan models.Point) models.GraphLayout {
	nodes := make(map[string]models.Point, len(live))
	if stored != nil {
		maps.Copy(nodes, stored.Nodes)
	}
	maps.Copy(nodes, live)
	return models.GraphLayout{
		Nodes: nodes,
		Zoom:  ClampZoom(zoom),
		Pan:   pan,
	}
}

// ClampZoom bounds z to [MinZoom, MaxZoom]; non-positive values reset to DefaultZoom.
func ClampZoom(z float64) float64 {
	switch {
	case z <= 0:
		return DefaultZoom
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	}
	return z
}
