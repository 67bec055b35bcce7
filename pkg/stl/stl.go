// Package stl writes sampled surfaces as binary STL files.
// The 16-bit attribute of every facet carries the anatomical tag code of the
// face, so region labels survive in tools that honour STL attributes.
package stl

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"bivssm/internal/models"
)

// ErrNotTriangle is returned when a mesh has faces that are not triangles.
var ErrNotTriangle = errors.New("stl: mesh has non-triangle cells")

// Triangle is one STL facet.
type Triangle struct {
	Normal    [3]float32
	Vertex1   [3]float32
	Vertex2   [3]float32
	Vertex3   [3]float32
	Attribute uint16
}

// header is the fixed 80-byte STL header followed by the facet count
type header struct {
	Text  [80]byte
	Count uint32
}

// FromInstance converts every cell of inst into a facet. Normals follow the
// right-hand rule of the cell's vertex order.
func FromInstance(inst *models.Instance) ([]Triangle, error) {
	ref := inst.Topology.Reference
	triangles := make([]Triangle, len(ref.Cells))
	for c, cell := range ref.Cells {
		if !ref.IsTriangle(c) {
			return nil, fmt.Errorf("%w: cell %d has %d vertices", ErrNotTriangle, c, len(cell))
		}
		a, b, d := inst.Vertex(cell[0]), inst.Vertex(cell[1]), inst.Vertex(cell[2])
		triangles[c] = Triangle{
			Normal:    normal(a, b, d),
			Vertex1:   toFloat32(a),
			Vertex2:   toFloat32(b),
			Vertex3:   toFloat32(d),
			Attribute: uint16(inst.Topology.CellTag(c)),
		}
	}
	return triangles, nil
}

func normal(a, b, c [3]float64) [3]float32 {
	u := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := [3]float64{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return [3]float32{}
	}
	return [3]float32{float32(n[0] / l), float32(n[1] / l), float32(n[2] / l)}
}

func toFloat32(p [3]float64) [3]float32 {
	return [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
}

// WriteSTL writes triangles in binary STL format.
func WriteSTL(w io.Writer, triangles []Triangle) error {
	var h header
	copy(h.Text[:], "bivssm synthetic surface")
	h.Count = uint32(len(triangles))

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return err
	}
	for i := range triangles {
		if err := binary.Write(bw, binary.LittleEndian, &triangles[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveToSTL writes triangles to filename.
func SaveToSTL(filename string, triangles []Triangle) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	if err := WriteSTL(f, triangles); err != nil {
		f.Close()
		return fmt.Errorf("failed to write STL file: %w", err)
	}
	return f.Close()
}

// ReadSTL reads a binary STL stream.
func ReadSTL(r io.Reader) ([]Triangle, error) {
	br := bufio.NewReader(r)
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("failed to read STL header: %w", err)
	}
	triangles := make([]Triangle, 0, min(int(h.Count), 1<<20))
	for i := uint32(0); i < h.Count; i++ {
		var t Triangle
		if err := binary.Read(br, binary.LittleEndian, &t); err != nil {
			return nil, fmt.Errorf("failed to read facet %d: %w", i, err)
		}
		triangles = append(triangles, t)
	}
	return triangles, nil
}
