// Package vtk reads and writes ASCII legacy VTK files.
// It supports the UNSTRUCTURED_GRID and POLYDATA (polygons only) datasets in
// both the classic "CELLS n size" layout and the OFFSETS/CONNECTIVITY layout
// written by VTK 9. Point, cell and field attribute arrays are kept so that a
// mesh can be written back with only its point coordinates changed.
package vtk

import (
	"errors"
	"strconv"
	"strings"
)

// ErrFormat is returned for files that are not valid ASCII legacy VTK.
var ErrFormat = errors.New("vtk: invalid legacy file")

// ErrUnsupported is returned for valid VTK content this package does not handle.
var ErrUnsupported = errors.New("vtk: unsupported content")

// DatasetType is the DATASET keyword of a legacy file.
type DatasetType string

const (
	UnstructuredGrid DatasetType = "UNSTRUCTURED_GRID"
	PolyData         DatasetType = "POLYDATA"
)

// Cell type codes used by this package.
const (
	CellTriangle = 5
	CellPolygon  = 7
	CellQuad     = 9
)

// ArrayKind is the attribute keyword an array was declared with.
type ArrayKind int

const (
	Scalars ArrayKind = iota
	Vectors
	Normals
	Field
)

// Array is one attribute array. Values are stored as float64 whatever the
// declared DataType; integer types round-trip exactly.
type Array struct {
	Kind     ArrayKind
	Name     string
	DataType string

	// Components is the number of values per tuple
	Components int

	// LookupTable is the LOOKUP_TABLE name of SCALARS arrays
	LookupTable string

	// FieldName groups FIELD arrays declared in the same FIELD block
	FieldName string

	Values []float64
}

// Tuples returns the number of tuples stored in the array.
func (a *Array) Tuples() int {
	if a.Components == 0 {
		return 0
	}
	return len(a.Values) / a.Components
}

// Mesh is the content of a legacy VTK file.
type Mesh struct {
	// Version is the number in the "# vtk DataFile Version" header
	Version string

	Title   string
	Dataset DatasetType

	// PointType is the declared type of the POINTS section
	PointType string

	// Points holds x y z per point, flat
	Points []float64

	// Cells holds the point indices of every cell
	Cells [][]int

	// CellTypes holds one VTK cell type per cell (UNSTRUCTURED_GRID only)
	CellTypes []int

	FieldData []Array
	PointData []Array
	CellData  []Array
}

// NumPoints returns the number of points.
func (m *Mesh) NumPoints() int {
	return len(m.Points) / 3
}

// PointArray returns the point data array with the given name, or nil.
func (m *Mesh) PointArray(name string) *Array {
	return findArray(m.PointData, name)
}

// CellArray returns the cell data array with the given name, or nil.
func (m *Mesh) CellArray(name string) *Array {
	return findArray(m.CellData, name)
}

// IsTriangle reports whether cell c is a triangle.
func (m *Mesh) IsTriangle(c int) bool {
	if len(m.Cells[c]) != 3 {
		return false
	}
	if m.Dataset == UnstructuredGrid && c < len(m.CellTypes) {
		return m.CellTypes[c] == CellTriangle
	}
	return true
}

// majorVersion returns the leading number of Version, or 0 when unparsable.
func (m *Mesh) majorVersion() int {
	major, _, _ := strings.Cut(m.Version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

func findArray(arrays []Array, name string) *Array {
	for i := range arrays {
		if arrays[i].Name == name {
			return &arrays[i]
		}
	}
	return nil
}
