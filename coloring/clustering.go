package coloring

import (
	"fmt"
	"sort"

	gcoloring "gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/pthm-cable/squish/components"
)

// Cluster is a set of constraints sharing one color, plus the particles they touch.
// It only exists while the clustering strategy runs.
type Cluster struct {
	Color       int
	Constraints []int
	Particles   map[int32]struct{}
}

func (c *Cluster) touches(con *components.Constraint) bool {
	_, a := c.Particles[con.A]
	_, b := c.Particles[con.B]
	return a || b
}

func (c *Cluster) add(ci int, con *components.Constraint) {
	c.Constraints = append(c.Constraints, ci)
	c.Particles[con.A] = struct{}{}
	c.Particles[con.B] = struct{}{}
}

// Clustering colors the constraint conflict graph with Welsh-Powell, then rebalances the
// resulting clusters so color groups have similar sizes. Costs more than Greedy but usually
// yields fewer and more even groups.
type Clustering struct {
	// LastClusters holds the clusters from the most recent Apply, for diagnostics.
	LastClusters []Cluster
}

// Name returns the strategy name.
func (*Clustering) Name() string { return KindClustering.String() }

// Apply colors constraints in place.
func (s *Clustering) Apply(constraints []components.Constraint, particleCount int) error {
	if err := checkIndices(constraints, particleCount); err != nil {
		return err
	}
	if len(constraints) == 0 {
		return nil
	}

	g := conflictGraph(constraints, particleCount)
	k, colors, err := gcoloring.WelshPowell(g, nil)
	if err != nil {
		return fmt.Errorf("welsh-powell: %w", err)
	}
	if len(colors) != len(constraints) {
		return fmt.Errorf("welsh-powell colored %d of %d constraints", len(colors), len(constraints))
	}
	edges := g.Edges()
	for edges.Next() {
		e := edges.Edge()
		if colors[e.From().ID()] == colors[e.To().ID()] {
			return fmt.Errorf("welsh-powell gave constraints %d and %d the same color: %w", e.From().ID(), e.To().ID(), ErrConflict)
		}
	}

	clusters := make([]Cluster, k)
	for col, ids := range gcoloring.Sets(colors) {
		if col < 0 || col >= k {
			return fmt.Errorf("welsh-powell color %d outside [0,%d)", col, k)
		}
		clusters[col] = Cluster{Color: col, Particles: make(map[int32]struct{})}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			clusters[col].add(int(id), &constraints[id])
		}
	}
	for i := range clusters {
		if clusters[i].Particles == nil {
			clusters[i] = Cluster{Color: i, Particles: make(map[int32]struct{})}
		}
	}

	rebalance(clusters, constraints)

	// Largest clusters first so low colors carry the most parallel work.
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Constraints) > len(clusters[j].Constraints)
	})
	color := 0
	for i := range clusters {
		if len(clusters[i].Constraints) == 0 {
			continue
		}
		clusters[i].Color = color
		for _, ci := range clusters[i].Constraints {
			constraints[ci].Color = int32(color)
		}
		color++
	}
	s.LastClusters = clusters[:color]
	return nil
}

// conflictGraph builds the line graph: one node per constraint, an edge wherever two
// constraints share a particle.
func conflictGraph(constraints []components.Constraint, particleCount int) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	incident := make([][]int, particleCount)
	for ci := range constraints {
		g.AddNode(simple.Node(ci))
		c := &constraints[ci]
		incident[c.A] = append(incident[c.A], ci)
		if c.B != c.A {
			incident[c.B] = append(incident[c.B], ci)
		}
	}
	for _, list := range incident {
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if g.HasEdgeBetween(int64(list[i]), int64(list[j])) {
					continue
				}
				g.SetEdge(simple.Edge{F: simple.Node(list[i]), T: simple.Node(list[j])})
			}
		}
	}
	return g
}

// rebalance moves constraints out of oversized clusters into undersized ones that do not
// touch either endpoint. The coloring invariant is preserved by construction.
func rebalance(clusters []Cluster, constraints []components.Constraint) {
	if len(clusters) < 2 {
		return
	}
	total := 0
	for i := range clusters {
		total += len(clusters[i].Constraints)
	}
	target := (total + len(clusters) - 1) / len(clusters)

	for i := range clusters {
		src := &clusters[i]
		if len(src.Constraints) <= target {
			continue
		}
		kept := src.Constraints[:0]
		for _, ci := range src.Constraints {
			if len(kept) >= target {
				if dst := findHome(clusters, i, target, &constraints[ci]); dst != nil {
					dst.add(ci, &constraints[ci])
					continue
				}
			}
			kept = append(kept, ci)
		}
		src.Constraints = kept
		src.Particles = make(map[int32]struct{}, len(kept)*2)
		for _, ci := range kept {
			src.Particles[constraints[ci].A] = struct{}{}
			src.Particles[constraints[ci].B] = struct{}{}
		}
	}
}

func findHome(clusters []Cluster, skip, target int, con *components.Constraint) *Cluster {
	for j := range clusters {
		if j == skip {
			continue
		}
		dst := &clusters[j]
		if len(dst.Constraints) < target && !dst.touches(con) {
			return dst
		}
	}
	return nil
}
