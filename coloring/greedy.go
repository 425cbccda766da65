package coloring

import "github.com/pthm-cable/squish/components"

// Greedy colors constraints in input order, giving each the smallest color not already used
// at either of its particles.
type Greedy struct{}

// Name returns the strategy name.
func (Greedy) Name() string { return KindGreedy.String() }

// Apply colors constraints in place.
func (Greedy) Apply(constraints []components.Constraint, particleCount int) error {
	if err := checkIndices(constraints, particleCount); err != nil {
		return err
	}
	greedyInOrder(constraints, nil, particleCount)
	return nil
}

// greedyInOrder colors constraints visiting them in order (nil = input order).
func greedyInOrder(constraints []components.Constraint, order []int, particleCount int) {
	used := make([][]int32, particleCount) // colors already present at each particle
	stamp := make([]int, 1)                // color -> last constraint that saw it in use

	visit := func(ci int) {
		c := &constraints[ci]
		mark := ci + 1
		for _, p := range [2]int32{c.A, c.B} {
			for _, col := range used[p] {
				stamp[col] = mark
			}
		}
		color := 0
		for color < len(stamp) && stamp[color] == mark {
			color++
		}
		if color == len(stamp) {
			stamp = append(stamp, 0)
		}
		c.Color = int32(color)
		used[c.A] = append(used[c.A], c.Color)
		if c.B != c.A {
			used[c.B] = append(used[c.B], c.Color)
		}
	}

	if order == nil {
		for i := range constraints {
			visit(i)
		}
		return
	}
	for _, i := range order {
		visit(i)
	}
}

// Naive gives every constraint its own color. Solving is then fully serial, which makes it
// useful for checking solver correctness independently of coloring.
type Naive struct{}

// Name returns the strategy name.
func (Naive) Name() string { return KindNaive.String() }

// Apply colors constraints in place.
func (Naive) Apply(constraints []components.Constraint, particleCount int) error {
	if err := checkIndices(constraints, particleCount); err != nil {
		return err
	}
	for i := range constraints {
		constraints[i].Color = int32(i)
	}
	return nil
}

// None puts every constraint in color 0. This does not satisfy the coloring invariant; it is
// only meant for tiny constraint counts where the race does not matter.
type None struct{}

// Name returns the strategy name.
func (None) Name() string { return KindNone.String() }

// Apply colors constraints in place.
func (None) Apply(constraints []components.Constraint, _ int) error {
	for i := range constraints {
		constraints[i].Color = 0
	}
	return nil
}
