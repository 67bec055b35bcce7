package vtk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// WriteFile writes m as an ASCII legacy VTK file.
func WriteFile(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Write encodes m in ASCII legacy format. Files with a major version of 5 or
// more get the OFFSETS/CONNECTIVITY cell layout, older ones the classic one.
// Coordinates use the shortest representation that parses back to the same
// value, so output is deterministic for identical input.
func Write(w io.Writer, m *Mesh) error {
	if m.Dataset != UnstructuredGrid && m.Dataset != PolyData {
		return fmt.Errorf("%w: dataset %q", ErrUnsupported, m.Dataset)
	}
	if len(m.Points)%3 != 0 {
		return fmt.Errorf("%w: point coordinates not a multiple of 3", ErrFormat)
	}

	version := m.Version
	if version == "" {
		version = "4.2"
	}
	title := m.Title
	if title == "" {
		title = "vtk output"
	}
	pointType := m.PointType
	if pointType == "" {
		pointType = "double"
	}
	bits := 64
	if strings.EqualFold(pointType, "float") {
		bits = 32
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# vtk DataFile Version %s\n%s\nASCII\nDATASET %s\n", version, title, m.Dataset)
	writeField(bw, m.FieldData)

	fmt.Fprintf(bw, "POINTS %d %s\n", m.NumPoints(), pointType)
	for i := 0; i < len(m.Points); i += 3 {
		fmt.Fprintf(bw, "%s %s %s\n",
			formatValue(m.Points[i], bits), formatValue(m.Points[i+1], bits), formatValue(m.Points[i+2], bits))
	}

	keyword := "CELLS"
	if m.Dataset == PolyData {
		keyword = "POLYGONS"
	}
	if m.majorVersion() >= 5 {
		writeOffsetCells(bw, keyword, m.Cells)
	} else {
		writeClassicCells(bw, keyword, m.Cells)
	}

	if m.Dataset == UnstructuredGrid {
		fmt.Fprintf(bw, "\nCELL_TYPES %d\n", len(m.CellTypes))
		for _, t := range m.CellTypes {
			fmt.Fprintf(bw, "%d\n", t)
		}
	}

	if len(m.PointData) > 0 {
		fmt.Fprintf(bw, "\nPOINT_DATA %d\n", m.NumPoints())
		writeAttributes(bw, m.PointData)
	}
	if len(m.CellData) > 0 {
		fmt.Fprintf(bw, "\nCELL_DATA %d\n", len(m.Cells))
		writeAttributes(bw, m.CellData)
	}

	return bw.Flush()
}

func writeClassicCells(w *bufio.Writer, keyword string, cells [][]int) {
	size := 0
	for _, c := range cells {
		size += len(c) + 1
	}
	fmt.Fprintf(w, "%s %d %d\n", keyword, len(cells), size)
	for _, c := range cells {
		w.WriteString(strconv.Itoa(len(c)))
		for _, v := range c {
			w.WriteByte(' ')
			w.WriteString(strconv.Itoa(v))
		}
		w.WriteByte('\n')
	}
}

func writeOffsetCells(w *bufio.Writer, keyword string, cells [][]int) {
	size := 0
	for _, c := range cells {
		size += len(c)
	}
	fmt.Fprintf(w, "%s %d %d\nOFFSETS vtktypeint64\n", keyword, len(cells)+1, size)
	offset := 0
	w.WriteString("0")
	for _, c := range cells {
		offset += len(c)
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(offset))
	}
	w.WriteString("\nCONNECTIVITY vtktypeint64\n")
	for _, c := range cells {
		for i, v := range c {
			if i > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(strconv.Itoa(v))
		}
		w.WriteByte('\n')
	}
}

func writeAttributes(w *bufio.Writer, arrays []Array) {
	var fields []Array
	for _, a := range arrays {
		switch a.Kind {
		case Scalars:
			fmt.Fprintf(w, "SCALARS %s %s %d\n", a.Name, a.DataType, a.Components)
			table := a.LookupTable
			if table == "" {
				table = "default"
			}
			fmt.Fprintf(w, "LOOKUP_TABLE %s\n", table)
			writeTuples(w, a)
		case Vectors:
			fmt.Fprintf(w, "VECTORS %s %s\n", a.Name, a.DataType)
			writeTuples(w, a)
		case Normals:
			fmt.Fprintf(w, "NORMALS %s %s\n", a.Name, a.DataType)
			writeTuples(w, a)
		case Field:
			fields = append(fields, a)
		}
	}
	writeField(w, fields)
}

// writeField writes consecutive arrays sharing a FieldName as one FIELD block.
func writeField(w *bufio.Writer, arrays []Array) {
	for start := 0; start < len(arrays); {
		end := start + 1
		for end < len(arrays) && arrays[end].FieldName == arrays[start].FieldName {
			end++
		}
		name := arrays[start].FieldName
		if name == "" {
			name = "FieldData"
		}
		fmt.Fprintf(w, "FIELD %s %d\n", name, end-start)
		for _, a := range arrays[start:end] {
			fmt.Fprintf(w, "%s %d %d %s\n", a.Name, a.Components, a.Tuples(), a.DataType)
			writeTuples(w, a)
		}
		start = end
	}
}

// integerTypes are the legacy data type names read back as integers
var integerTypes = map[string]bool{
	"bit":            true,
	"char":           true,
	"unsigned_char":  true,
	"short":          true,
	"unsigned_short": true,
	"int":            true,
	"unsigned_int":   true,
	"long":           true,
	"unsigned_long":  true,
	"vtkidtype":      true,
	"vtktypeint64":   true,
	"vtktypeuint64":  true,
}

func writeTuples(w *bufio.Writer, a Array) {
	bits := 64
	if strings.EqualFold(a.DataType, "float") {
		bits = 32
	}
	integer := integerTypes[strings.ToLower(a.DataType)]
	n := a.Components
	if n < 1 {
		n = 1
	}
	for i, v := range a.Values {
		if integer {
			w.WriteString(strconv.FormatInt(int64(v), 10))
		} else {
			w.WriteString(formatValue(v, bits))
		}
		if (i+1)%n == 0 {
			w.WriteByte('\n')
		} else {
			w.WriteByte(' ')
		}
	}
}

func formatValue(v float64, bits int) string {
	if bits == 32 {
		v = float64(float32(v))
	}
	return strconv.FormatFloat(v, 'g', -1, bits)
}
