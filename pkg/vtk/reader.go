package vtk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// scanner splits a legacy file into whitespace separated tokens while still
// allowing line-oriented reads for the header and METADATA blocks.
type scanner struct {
	sc   *bufio.Scanner
	toks []string
	line int
}

func newScanner(r io.Reader) *scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &scanner{sc: sc}
}

// readLine returns the next raw line, bypassing the token buffer.
func (s *scanner) readLine() (string, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	s.line++
	return strings.TrimRight(s.sc.Text(), "\r"), nil
}

func (s *scanner) fill() error {
	for len(s.toks) == 0 {
		line, err := s.readLine()
		if err != nil {
			return err
		}
		s.toks = strings.Fields(line)
	}
	return nil
}

func (s *scanner) next() (string, error) {
	if err := s.fill(); err != nil {
		return "", err
	}
	tok := s.toks[0]
	s.toks = s.toks[1:]
	return tok, nil
}

func (s *scanner) peek() (string, error) {
	if err := s.fill(); err != nil {
		return "", err
	}
	return s.toks[0], nil
}

// skipMetadata discards a METADATA block, which ends at the first blank line.
func (s *scanner) skipMetadata() error {
	s.toks = nil
	for {
		line, err := s.readLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			return nil
		}
	}
}

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrFormat, s.line, fmt.Sprintf(format, args...))
}

// mustNext is next with io.EOF turned into a format error.
func (s *scanner) mustNext(what string) (string, error) {
	tok, err := s.next()
	if err == io.EOF {
		return "", s.errorf("unexpected end of file reading %s", what)
	}
	return tok, err
}

func (s *scanner) nextInt(what string) (int, error) {
	tok, err := s.mustNext(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, s.errorf("invalid %s %q", what, tok)
	}
	return n, nil
}

func (s *scanner) nextCount(what string) (int, error) {
	n, err := s.nextInt(what)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, s.errorf("negative %s %d", what, n)
	}
	return n, nil
}

func (s *scanner) floats(n int, what string) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		tok, err := s.mustNext(what)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, s.errorf("invalid %s value %q", what, tok)
		}
		out[i] = v
	}
	return out, nil
}

func (s *scanner) ints(n int, what string) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		v, err := s.nextInt(what)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// expect consumes keyword, skipping any METADATA block in front of it.
func (s *scanner) expect(keyword string) error {
	for {
		tok, err := s.mustNext(keyword)
		if err != nil {
			return err
		}
		if strings.EqualFold(tok, "METADATA") {
			if err := s.skipMetadata(); err != nil {
				return err
			}
			continue
		}
		if !strings.EqualFold(tok, keyword) {
			return s.errorf("expected %s, got %q", keyword, tok)
		}
		return nil
	}
}

// ReadFile reads a legacy VTK file from disk.
func ReadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}

// Read parses an ASCII legacy VTK stream.
func Read(r io.Reader) (*Mesh, error) {
	s := newScanner(r)
	m := &Mesh{}

	header, err := s.readLine()
	if err != nil {
		return nil, s.errorf("missing header")
	}
	if !strings.HasPrefix(strings.ToLower(header), "# vtk datafile version") {
		return nil, s.errorf("not a legacy VTK file")
	}
	fields := strings.Fields(header)
	m.Version = fields[len(fields)-1]

	if m.Title, err = s.readLine(); err != nil {
		return nil, s.errorf("missing title line")
	}
	format, err := s.readLine()
	if err != nil {
		return nil, s.errorf("missing file format line")
	}
	switch strings.ToUpper(strings.TrimSpace(format)) {
	case "ASCII":
	case "BINARY":
		return nil, fmt.Errorf("%w: BINARY legacy files", ErrUnsupported)
	default:
		return nil, s.errorf("unknown file format %q", format)
	}

	if err := s.expect("DATASET"); err != nil {
		return nil, err
	}
	typ, err := s.mustNext("dataset type")
	if err != nil {
		return nil, err
	}
	m.Dataset = DatasetType(strings.ToUpper(typ))
	if m.Dataset != UnstructuredGrid && m.Dataset != PolyData {
		return nil, fmt.Errorf("%w: dataset %s", ErrUnsupported, typ)
	}

	var (
		attrs *[]Array
		count int
	)
	for {
		tok, err := s.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch kw := strings.ToUpper(tok); kw {
		case "POINTS":
			n, err := s.nextCount("point count")
			if err != nil {
				return nil, err
			}
			if m.PointType, err = s.mustNext("point type"); err != nil {
				return nil, err
			}
			if m.Points, err = s.floats(3*n, "point"); err != nil {
				return nil, err
			}
		case "CELLS", "POLYGONS":
			if (kw == "CELLS") != (m.Dataset == UnstructuredGrid) {
				return nil, s.errorf("%s section in %s dataset", kw, m.Dataset)
			}
			if m.Cells, err = readCells(s); err != nil {
				return nil, err
			}
		case "CELL_TYPES":
			n, err := s.nextCount("cell type count")
			if err != nil {
				return nil, err
			}
			if m.CellTypes, err = s.ints(n, "cell type"); err != nil {
				return nil, err
			}
		case "VERTICES", "LINES", "TRIANGLE_STRIPS":
			return nil, fmt.Errorf("%w: %s section", ErrUnsupported, kw)
		case "METADATA":
			if err := s.skipMetadata(); err != nil {
				return nil, err
			}
		case "POINT_DATA", "CELL_DATA":
			if count, err = s.nextCount(kw); err != nil {
				return nil, err
			}
			if kw == "POINT_DATA" {
				attrs = &m.PointData
			} else {
				attrs = &m.CellData
			}
		case "FIELD":
			arrays, err := readField(s)
			if err != nil {
				return nil, err
			}
			if attrs == nil {
				m.FieldData = append(m.FieldData, arrays...)
			} else {
				*attrs = append(*attrs, arrays...)
			}
		case "SCALARS", "VECTORS", "NORMALS":
			if attrs == nil {
				return nil, s.errorf("%s outside POINT_DATA or CELL_DATA", kw)
			}
			a, err := readAttribute(s, kw, count)
			if err != nil {
				return nil, err
			}
			*attrs = append(*attrs, a)
		default:
			return nil, fmt.Errorf("%w: keyword %s", ErrUnsupported, tok)
		}
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// readCells reads a CELLS or POLYGONS section in either layout.
func readCells(s *scanner) ([][]int, error) {
	n, err := s.nextCount("cell count")
	if err != nil {
		return nil, err
	}
	size, err := s.nextCount("cell list size")
	if err != nil {
		return nil, err
	}

	tok, err := s.peek()
	if err == nil && strings.EqualFold(tok, "OFFSETS") {
		return readOffsetCells(s, n, size)
	}

	cells := make([][]int, n)
	consumed := 0
	for i := range cells {
		k, err := s.nextCount("cell size")
		if err != nil {
			return nil, err
		}
		if cells[i], err = s.ints(k, "cell index"); err != nil {
			return nil, err
		}
		consumed += k + 1
	}
	if consumed != size {
		return nil, s.errorf("cell list size %d does not match content %d", size, consumed)
	}
	return cells, nil
}

func readOffsetCells(s *scanner, nOffsets, nConn int) ([][]int, error) {
	if err := s.expect("OFFSETS"); err != nil {
		return nil, err
	}
	if _, err := s.mustNext("offsets type"); err != nil {
		return nil, err
	}
	offsets, err := s.ints(nOffsets, "offset")
	if err != nil {
		return nil, err
	}
	if err := s.expect("CONNECTIVITY"); err != nil {
		return nil, err
	}
	if _, err := s.mustNext("connectivity type"); err != nil {
		return nil, err
	}
	conn, err := s.ints(nConn, "connectivity")
	if err != nil {
		return nil, err
	}

	if nOffsets == 0 {
		return nil, nil
	}
	cells := make([][]int, nOffsets-1)
	for i := range cells {
		lo, hi := offsets[i], offsets[i+1]
		if lo < 0 || hi < lo || hi > len(conn) {
			return nil, s.errorf("invalid offsets %d..%d", lo, hi)
		}
		cells[i] = conn[lo:hi:hi]
	}
	return cells, nil
}

func readField(s *scanner) ([]Array, error) {
	name, err := s.mustNext("field name")
	if err != nil {
		return nil, err
	}
	n, err := s.nextCount("field array count")
	if err != nil {
		return nil, err
	}

	arrays := make([]Array, 0, n)
	for len(arrays) < n {
		tok, err := s.mustNext("field array name")
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(tok, "METADATA") {
			if err := s.skipMetadata(); err != nil {
				return nil, err
			}
			continue
		}
		a := Array{Kind: Field, Name: tok, FieldName: name}
		if a.Components, err = s.nextCount("field components"); err != nil {
			return nil, err
		}
		tuples, err := s.nextCount("field tuples")
		if err != nil {
			return nil, err
		}
		if a.DataType, err = s.mustNext("field type"); err != nil {
			return nil, err
		}
		if a.Values, err = s.floats(a.Components*tuples, "field"); err != nil {
			return nil, err
		}
		arrays = append(arrays, a)
	}
	return arrays, nil
}

func readAttribute(s *scanner, kw string, count int) (Array, error) {
	a := Array{Components: 3}
	switch kw {
	case "SCALARS":
		a.Kind, a.Components = Scalars, 1
	case "VECTORS":
		a.Kind = Vectors
	case "NORMALS":
		a.Kind = Normals
	}

	var err error
	if a.Name, err = s.mustNext(kw + " name"); err != nil {
		return a, err
	}
	if a.DataType, err = s.mustNext(kw + " type"); err != nil {
		return a, err
	}

	if a.Kind == Scalars {
		if tok, err := s.peek(); err == nil {
			if n, convErr := strconv.Atoi(tok); convErr == nil {
				if n < 1 || n > 4 {
					return a, s.errorf("invalid scalar component count %d", n)
				}
				a.Components = n
				_, _ = s.next()
			}
		}
		if tok, err := s.peek(); err == nil && strings.EqualFold(tok, "LOOKUP_TABLE") {
			_, _ = s.next()
			if a.LookupTable, err = s.mustNext("lookup table name"); err != nil {
				return a, err
			}
		}
	}

	a.Values, err = s.floats(count*a.Components, kw)
	return a, err
}

func (m *Mesh) validate() error {
	n := m.NumPoints()
	if len(m.Points)%3 != 0 {
		return fmt.Errorf("%w: point coordinates not a multiple of 3", ErrFormat)
	}
	for c, cell := range m.Cells {
		for _, v := range cell {
			if v < 0 || v >= n {
				return fmt.Errorf("%w: cell %d references point %d of %d", ErrFormat, c, v, n)
			}
		}
	}
	if m.Dataset == UnstructuredGrid && len(m.CellTypes) != len(m.Cells) {
		return fmt.Errorf("%w: %d cell types for %d cells", ErrFormat, len(m.CellTypes), len(m.Cells))
	}
	check := func(arrays []Array, want int, where string) error {
		for _, a := range arrays {
			if a.Kind != Field && a.Tuples() != want {
				return fmt.Errorf("%w: %s array %q has %d tuples, want %d", ErrFormat, where, a.Name, a.Tuples(), want)
			}
		}
		return nil
	}
	if err := check(m.PointData, n, "point"); err != nil {
		return err
	}
	return check(m.CellData, len(m.Cells), "cell")
}
