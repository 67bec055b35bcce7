package ssm

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

// artifactMagic starts every SSM.bin file; the last byte is the format version.
var artifactMagic = [8]byte{'B', 'I', 'V', 'S', 'S', 'M', 0, 1}

// Artifact is the on-disk content of a trained shape model. The three fields
// mirror the datasets of the HDF5 file produced by the fitting pipeline.
type Artifact struct {
	// Components is K×3V, one mode of variation per row
	Components *mat.Dense

	// Mean is the 3V mean shape
	Mean *mat.VecDense

	// ExplainedVariance holds the K mode variances
	ExplainedVariance *mat.VecDense
}

// WriteTo encodes the artifact: the magic bytes followed by the gonum binary
// encodings of Components, Mean and ExplainedVariance.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	total := int64(0)

	n, err := bw.Write(artifactMagic[:])
	total += int64(n)
	if err != nil {
		return total, err
	}
	if n, err = a.Components.MarshalBinaryTo(bw); err != nil {
		return total + int64(n), fmt.Errorf("encoding components: %w", err)
	}
	total += int64(n)
	if n, err = a.Mean.MarshalBinaryTo(bw); err != nil {
		return total + int64(n), fmt.Errorf("encoding mean: %w", err)
	}
	total += int64(n)
	if n, err = a.ExplainedVariance.MarshalBinaryTo(bw); err != nil {
		return total + int64(n), fmt.Errorf("encoding explained variance: %w", err)
	}
	total += int64(n)
	return total, bw.Flush()
}

// ReadArtifact decodes an artifact written by WriteTo.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	br := bufio.NewReader(r)

	var magic [8]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedModel, err)
	}
	if !bytes.Equal(magic[:], artifactMagic[:]) {
		return nil, fmt.Errorf("%w: not a shape model artifact", ErrMalformedModel)
	}

	a := &Artifact{
		Components:        &mat.Dense{},
		Mean:              &mat.VecDense{},
		ExplainedVariance: &mat.VecDense{},
	}
	if _, err := a.Components.UnmarshalBinaryFrom(br); err != nil {
		return nil, fmt.Errorf("%w: decoding components: %v", ErrMalformedModel, err)
	}
	if _, err := a.Mean.UnmarshalBinaryFrom(br); err != nil {
		return nil, fmt.Errorf("%w: decoding mean: %v", ErrMalformedModel, err)
	}
	if _, err := a.ExplainedVariance.UnmarshalBinaryFrom(br); err != nil {
		return nil, fmt.Errorf("%w: decoding explained variance: %v", ErrMalformedModel, err)
	}
	return a, nil
}

// WriteArtifactFile writes a to path.
func WriteArtifactFile(path string, a *Artifact) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := a.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadArtifactFile reads the artifact stored at path.
func ReadArtifactFile(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := ReadArtifact(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a, nil
}
