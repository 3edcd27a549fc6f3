package models

import (
	"encoding/json"
	"fmt"
)

// GraphNode is a person in the relationship graph.
type GraphNode struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

// GraphEdge connects two persons. Only one edge is reported per unordered pair.
type GraphEdge struct {
	Source       int64  `json:"source"`
	Target       int64  `json:"target"`
	RelationType string `json:"relation_type"`
}

// GraphResponse is the full relationship graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphLayout is the persisted view state of the graph: node positions
// keyed by node id, zoom level and pan offset.
type GraphLayout struct {
	Nodes map[string]Point `json:"nodes"`
	Zoom  float64          `json:"zoom"`
	Pan   Point            `json:"pan"`
}

// HasNodes reports whether the layout stores at least one node position.
func (l *GraphLayout) HasNodes() bool {
	return l != nil && len(l.Nodes) > 0
}

// ParseGraphLayout decodes a stored layout blob. Besides the full
// {nodes, zoom, pan} shape it accepts the legacy flat map of node id to
// position, which yields a layout without zoom or pan. An empty blob
// or "{}" yields nil.
func ParseGraphLayout(data []byte) (*GraphLayout, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	if _, ok := fields["nodes"]; ok {
		var l GraphLayout
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if l.Nodes == nil {
			l.Nodes = map[string]Point{}
		}
		return &l, nil
	}

	nodes := make(map[string]Point, len(fields))
	for id, raw := range fields {
		var p Point
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parse legacy layout node %q: %w", id, err)
		}
		nodes[id] = p
	}
	return &GraphLayout{Nodes: nodes}, nil
}

// ParseGraphLayoutValue decodes a layout from an already decoded value,
// as returned by the database driver.
func ParseGraphLayoutValue(v any) (*GraphLayout, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	return ParseGraphLayout(data)
}
