package ssm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ReadTextMatrix parses a numeric table with one row per line, values
// separated by whitespace or commas. Blank lines and lines starting with '#'
// are skipped, which covers the output of numpy.savetxt.
func ReadTextMatrix(r io.Reader) (*mat.Dense, error) {
	var data []float64
	rows, cols := 0, 0

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 1<<20), 1<<30)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if rows == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, fmt.Errorf("%w: line %d has %d values, expected %d", ErrMalformedModel, line, len(fields), cols)
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedModel, line, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: no values", ErrMalformedModel)
	}
	return mat.NewDense(rows, cols, data), nil
}

// asVector flattens a single row or single column table.
func asVector(m *mat.Dense, name string) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r != 1 && c != 1 {
		return nil, fmt.Errorf("%w: %s must be a single row or column, got %dx%d", ErrMalformedModel, name, r, c)
	}
	return mat.NewVecDense(r*c, m.RawMatrix().Data), nil
}

// ArtifactFromText assembles an artifact from text exports of the three
// arrays. Only the leading modes are kept when modes is positive.
func ArtifactFromText(components, mean, variance io.Reader, modes int) (*Artifact, error) {
	comp, err := ReadTextMatrix(components)
	if err != nil {
		return nil, fmt.Errorf("components: %w", err)
	}
	mm, err := ReadTextMatrix(mean)
	if err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	vm, err := ReadTextMatrix(variance)
	if err != nil {
		return nil, fmt.Errorf("explained variance: %w", err)
	}
	meanVec, err := asVector(mm, "mean")
	if err != nil {
		return nil, err
	}
	varVec, err := asVector(vm, "explained variance")
	if err != nil {
		return nil, err
	}

	k, n := comp.Dims()
	if n%3 != 0 {
		return nil, fmt.Errorf("%w: components have %d columns, not a multiple of 3", ErrMalformedModel, n)
	}
	if n != meanVec.Len() {
		return nil, fmt.Errorf("%w: components have %d columns, mean has %d values", ErrMalformedModel, n, meanVec.Len())
	}
	if k != varVec.Len() {
		return nil, fmt.Errorf("%w: %d components, %d variances", ErrMalformedModel, k, varVec.Len())
	}
	if modes > 0 && modes < k {
		comp = mat.DenseCopyOf(comp.Slice(0, modes, 0, n))
		varVec = mat.VecDenseCopyOf(varVec.SliceVec(0, modes))
	}
	return &Artifact{Components: comp, Mean: meanVec, ExplainedVariance: varVec}, nil
}
