// Package coloring assigns color groups to distance constraints so that no two constraints
// in the same group share a particle. Each group can then be solved in one parallel dispatch
// without write races on particle positions.
package coloring

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pthm-cable/squish/components"
)

var (
	// ErrIndexOutOfRange is returned when a constraint references a particle outside [0, particleCount).
	ErrIndexOutOfRange = errors.New("constraint particle index out of range")
	// ErrConflict is returned by Validate when two constraints sharing a particle have the same color.
	ErrConflict = errors.New("constraints sharing a particle have the same color")
)

// Strategy colors a constraint list in place.
type Strategy interface {
	Name() string
	Apply(constraints []components.Constraint, particleCount int) error
}

// Kind selects a coloring strategy.
type Kind uint8

const (
	KindGreedy Kind = iota
	KindNaive
	KindNone
	KindClustering
	KindSpectral
)

var kindNames = []string{"greedy", "naive", "none", "clustering", "spectral"}

// String returns the config name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind converts a config name to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return KindGreedy, fmt.Errorf("unknown coloring strategy %q", s)
}

// New returns the strategy for kind. Unknown kinds get the greedy strategy.
func New(kind Kind) Strategy {
	switch kind {
	case KindNaive:
		return Naive{}
	case KindNone:
		return None{}
	case KindClustering:
		return &Clustering{}
	case KindSpectral:
		return &Spectral{MaxParticles: MaxSpectralParticles}
	default:
		return Greedy{}
	}
}

// Outcome describes the result of ApplyColouring.
type Outcome struct {
	Strategy string
	Colors   int  // number of color groups (max color + 1)
	Fallback bool // strategy failed, everything was assigned color 0
	Err      error
}

// ApplyColouring runs s over constraints. If the strategy returns an error or panics, every
// constraint is assigned color 0 and the failure is logged. No constraint is ever left with a
// negative color.
func ApplyColouring(s Strategy, constraints []components.Constraint, particleCount int, logger *slog.Logger) Outcome {
	if logger == nil {
		logger = slog.Default()
	}
	out := Outcome{Strategy: s.Name()}
	if len(constraints) == 0 {
		return out
	}

	err := safeApply(s, constraints, particleCount)
	if err == nil {
		for i := range constraints {
			if constraints[i].Color < 0 {
				err = fmt.Errorf("constraint %d left uncolored", i)
				break
			}
		}
	}
	if err != nil {
		logger.Error("constraint coloring failed, falling back to single group",
			"strategy", s.Name(),
			"constraints", len(constraints),
			"error", err,
		)
		for i := range constraints {
			constraints[i].Color = 0
		}
		out.Fallback = true
		out.Err = err
	}

	out.Colors = int(MaxColor(constraints)) + 1
	return out
}

func safeApply(s Strategy, constraints []components.Constraint, particleCount int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Apply(constraints, particleCount)
}

// checkIndices verifies every endpoint addresses an existing particle.
func checkIndices(constraints []components.Constraint, particleCount int) error {
	n := int32(particleCount)
	for i := range constraints {
		c := &constraints[i]
		if c.A < 0 || c.A >= n || c.B < 0 || c.B >= n {
			return fmt.Errorf("constraint %d (%d-%d) with %d particles: %w", i, c.A, c.B, particleCount, ErrIndexOutOfRange)
		}
	}
	return nil
}

// MaxColor returns the highest color in use, or -1 for an empty list.
func MaxColor(constraints []components.Constraint) int32 {
	max := int32(-1)
	for i := range constraints {
		if constraints[i].Color > max {
			max = constraints[i].Color
		}
	}
	return max
}

// Validate checks that no two constraints sharing a particle have the same color.
func Validate(constraints []components.Constraint) error {
	type key struct {
		particle int32
		color    int32
	}
	seen := make(map[key]int, len(constraints)*2)
	for i := range constraints {
		c := &constraints[i]
		for _, p := range [2]int32{c.A, c.B} {
			k := key{p, c.Color}
			if j, ok := seen[k]; ok && j != i {
				return fmt.Errorf("constraints %d and %d at particle %d, color %d: %w", j, i, p, c.Color, ErrConflict)
			}
			seen[k] = i
		}
	}
	return nil
}

// Stats summarizes color group occupancy.
type Stats struct {
	Colors   int
	MaxGroup int
	MinGroup int
	Groups   []int // constraint count per color
}

// ComputeStats returns the size of every color group.
func ComputeStats(constraints []components.Constraint) Stats {
	n := int(MaxColor(constraints)) + 1
	if n <= 0 {
		return Stats{}
	}
	groups := make([]int, n)
	for i := range constraints {
		if c := constraints[i].Color; c >= 0 {
			groups[c]++
		}
	}
	st := Stats{Colors: n, Groups: groups, MinGroup: groups[0]}
	for _, g := range groups {
		if g > st.MaxGroup {
			st.MaxGroup = g
		}
		if g < st.MinGroup {
			st.MinGroup = g
		}
	}
	return st
}
