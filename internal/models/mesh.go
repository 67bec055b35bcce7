package models

import (
	"fmt"

	"bivssm/pkg/vtk"
)

// Tag is the anatomical region a vertex or face belongs to.
// The numeric values are the codes stored in the reference mesh tag array.
type Tag int

const (
	TagUnknown Tag = iota
	LVEndocardium
	LVEpicardium
	RVEndocardium
	RVEpicardium
	LVSeptum
)

// Tags lists every known anatomical label in code order.
var Tags = []Tag{LVEndocardium, LVEpicardium, RVEndocardium, RVEpicardium, LVSeptum}

func (t Tag) String() string {
	switch t {
	case LVEndocardium:
		return "lv_endo"
	case LVEpicardium:
		return "lv_epi"
	case RVEndocardium:
		return "rv_endo"
	case RVEpicardium:
		return "rv_epi"
	case LVSeptum:
		return "lv_septum"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Valid reports whether t is one of the five anatomical labels.
func (t Tag) Valid() bool {
	return t >= LVEndocardium && t <= LVSeptum
}

// TagLocation says whether tags are attached to vertices or to faces
type TagLocation int

const (
	PointTags TagLocation = iota
	CellTags
)

func (l TagLocation) String() string {
	if l == CellTags {
		return "cell"
	}
	return "point"
}

// Topology is the part of a mesh that every sampled instance shares with
// the reference mesh: connectivity, cell types, attribute arrays and the
// decoded anatomical tags. It is built once at load time and never mutated.
type Topology struct {
	// Reference is the reference mesh as read from disk. Its Points are the
	// reference geometry and are replaced on output, everything else is
	// written back unchanged.
	Reference *vtk.Mesh

	// Tags holds one label per vertex or per cell, depending on TagLocation
	Tags []Tag

	// TagLocation records where Tags were found in the reference mesh
	TagLocation TagLocation

	// TagArray is the name of the attribute array the tags were decoded from
	TagArray string
}

// NumCells returns the number of faces in the shared connectivity.
func (t *Topology) NumCells() int {
	return len(t.Reference.Cells)
}

// CellTag returns the anatomical label of cell c. For point tags the label
// shared by the majority of the cell's vertices is used, falling back to the
// first vertex when all of them differ.
func (t *Topology) CellTag(c int) Tag {
	if t.TagLocation == CellTags {
		return t.Tags[c]
	}
	cell := t.Reference.Cells[c]
	if len(cell) == 0 {
		return TagUnknown
	}
	best, bestCount := t.Tags[cell[0]], 0
	for _, a := range cell {
		count := 0
		for _, b := range cell {
			if t.Tags[a] == t.Tags[b] {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = t.Tags[a], count
		}
	}
	return best
}

// Instance is one sampled shape: the coefficients it was drawn with and the
// reconstructed vertex positions. Topology points at the shape model's own
// topology and is never copied.
type Instance struct {
	// Index is the position of the instance in its batch (0..N-1)
	Index int

	// Coefficients are the per-mode positions in units of standard deviation
	Coefficients []float64

	// Vertices are the reconstructed positions, flat x0 y0 z0 x1 ...
	Vertices []float64

	Topology *Topology
}

// NumVertices returns the number of reconstructed vertices.
func (in *Instance) NumVertices() int {
	return len(in.Vertices) / 3
}

// Vertex returns the position of vertex v.
func (in *Instance) Vertex(v int) [3]float64 {
	return [3]float64{in.Vertices[3*v], in.Vertices[3*v+1], in.Vertices[3*v+2]}
}

// Mesh returns the instance as a writable mesh. The result is a shallow copy
// of the reference mesh with only the points swapped, so connectivity and
// attribute arrays stay shared with the shape model.
func (in *Instance) Mesh() *vtk.Mesh {
	m := *in.Topology.Reference
	m.Points = in.Vertices
	return &m
}
