// Package sampling draws shape coefficients: one standard normal value per
// retained mode, bounded per coefficient by a configurable policy.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidParameter is returned for out of range sampling parameters.
var ErrInvalidParameter = errors.New("invalid sampling parameter")

// Policy decides what happens to a draw that falls outside the bound.
type Policy int

const (
	// PolicyNone leaves draws unbounded.
	PolicyNone Policy = iota

	// PolicyClip replaces a draw outside [-B, B] by the nearest bound.
	PolicyClip

	// PolicyResample draws again until the value lies inside [-B, B].
	PolicyResample
)

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyClip:
		return "clip"
	case PolicyResample:
		return "resample"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy converts a policy name as used in configuration files.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return PolicyNone, nil
	case "clip":
		return PolicyClip, nil
	case "resample":
		return PolicyResample, nil
	}
	return 0, fmt.Errorf("%w: unknown bounding policy %q", ErrInvalidParameter, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Bound limits every coefficient to [-Max, Max] standard deviations.
type Bound struct {
	Max    float64
	Policy Policy
}

// Unbounded is the bound that never alters a draw.
var Unbounded = Bound{Policy: PolicyNone}

// Validate reports whether the bound can be applied.
func (b Bound) Validate() error {
	switch b.Policy {
	case PolicyNone:
		return nil
	case PolicyClip, PolicyResample:
		if !(b.Max > 0) || math.IsInf(b.Max, 0) {
			return fmt.Errorf("%w: boundary must be a positive number of standard deviations, got %v", ErrInvalidParameter, b.Max)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown bounding policy %d", ErrInvalidParameter, int(b.Policy))
}

func (b Bound) String() string {
	if b.Policy == PolicyNone {
		return "none"
	}
	return fmt.Sprintf("%s(%g)", b.Policy, b.Max)
}

// Sampler draws coefficient vectors of a fixed length. It is not safe for
// concurrent use; a batch shares one sampler so draws stay reproducible.
type Sampler struct {
	k      int
	bound  Bound
	normal distuv.Normal

	// lower draws the lower half of the truncated normal in CDF space,
	// sign picks the half
	lower distuv.Uniform
	sign  distuv.Uniform
}

// NewSampler returns a sampler of k coefficients for a model with available
// modes, bounded by b. Samplers built with the same seed yield the same draws.
func NewSampler(k, available int, b Bound, seed uint64) (*Sampler, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: number of components %d must be at least 1", ErrInvalidParameter, k)
	}
	if k > available {
		return nil, fmt.Errorf("%w: number of components %d exceeds the %d modes of the model", ErrInvalidParameter, k, available)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewSource(seed)
	s := &Sampler{
		k:      k,
		bound:  b,
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
	if b.Policy == PolicyResample {
		s.lower = distuv.Uniform{Min: s.normal.CDF(-b.Max), Max: 0.5, Src: src}
		s.sign = distuv.Uniform{Min: 0, Max: 1, Src: src}
	}
	return s, nil
}

// K returns the number of coefficients per draw.
func (s *Sampler) K() int {
	return s.k
}

// Bound returns the bounding policy in use.
func (s *Sampler) Bound() Bound {
	return s.bound
}

// Draw returns a fresh coefficient vector.
func (s *Sampler) Draw() []float64 {
	c := make([]float64, s.k)
	for i := range c {
		c[i] = s.one()
	}
	return c
}

// DrawN returns n coefficient vectors in draw order.
func (s *Sampler) DrawN(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = s.Draw()
	}
	return out
}

func (s *Sampler) one() float64 {
	switch s.bound.Policy {
	case PolicyClip:
		v := s.normal.Rand()
		return math.Max(-s.bound.Max, math.Min(s.bound.Max, v))
	case PolicyResample:
		return s.truncated()
	}
	return s.normal.Rand()
}

// truncated draws from the standard normal conditioned on |v| <= B by
// inverting the CDF, so every coefficient costs two uniform draws however
// small B is. The lower half keeps full precision near the CDF's zero; the
// result is mirrored with probability one half.
func (s *Sampler) truncated() float64 {
	v := s.normal.Quantile(s.lower.Rand())
	v = math.Max(-s.bound.Max, math.Min(0, v))
	if s.sign.Rand() < 0.5 {
		v = -v
	}
	return v
}
