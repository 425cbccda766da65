package topology

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// LatticeOptions controls lattice generation.
type LatticeOptions struct {
	NX, NY, NZ       int     // particles per axis, at least 2 each
	Spacing          float64 // distance between neighbours
	Mass             float64 // per particle
	Compliance       float64 // distance constraints
	Shear            bool    // add face and body diagonals
	Volume           bool    // add tetrahedral volume constraints
	VolumeCompliance float64
	Pressure         float64
}

// Lattice builds a regular grid of particles with its lower corner at origin.
func Lattice(origin r3.Vec, o LatticeOptions) (Topology, error) {
	if o.NX < 2 || o.NY < 2 || o.NZ < 2 {
		return Topology{}, fmt.Errorf("lattice %dx%dx%d: need at least 2 particles per axis", o.NX, o.NY, o.NZ)
	}
	if o.Spacing <= 0 || o.Mass <= 0 {
		return Topology{}, fmt.Errorf("lattice: spacing %v and mass %v must be positive", o.Spacing, o.Mass)
	}

	idx := func(x, y, z int) int32 { return int32(x + o.NX*(y+o.NY*z)) }

	var t Topology
	n := o.NX * o.NY * o.NZ
	t.Particles = make([]components.Particle, n)
	t.UVs = make([]r2.Vec, n)
	for z := 0; z < o.NZ; z++ {
		for y := 0; y < o.NY; y++ {
			for x := 0; x < o.NX; x++ {
				i := idx(x, y, z)
				t.Particles[i] = components.Particle{
					Position: r3.Add(origin, r3.Scale(o.Spacing, r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)})),
					InvMass:  1 / o.Mass,
				}
				t.UVs[i] = r2.Vec{X: float64(x) / float64(o.NX-1), Y: float64(z) / float64(o.NZ-1)}
			}
		}
	}

	link := func(a, b int32) {
		t.Constraints = append(t.Constraints, distance(t.Particles, a, b, o.Compliance))
	}
	for z := 0; z < o.NZ; z++ {
		for y := 0; y < o.NY; y++ {
			for x := 0; x < o.NX; x++ {
				i := idx(x, y, z)
				if x+1 < o.NX {
					link(i, idx(x+1, y, z))
				}
				if y+1 < o.NY {
					link(i, idx(x, y+1, z))
				}
				if z+1 < o.NZ {
					link(i, idx(x, y, z+1))
				}
			}
		}
	}

	if o.Shear {
		forCells(o, func(x, y, z int) {
			c := cellCorners(idx, x, y, z)
			// face diagonals on the three faces through the low corner, plus the far faces
			// on the lattice boundary
			link(c[0], c[3])
			link(c[1], c[2])
			link(c[0], c[5])
			link(c[1], c[4])
			link(c[0], c[6])
			link(c[2], c[4])
			if x+2 == o.NX {
				link(c[1], c[7])
				link(c[3], c[5])
			}
			if y+2 == o.NY {
				link(c[2], c[7])
				link(c[3], c[6])
			}
			if z+2 == o.NZ {
				link(c[4], c[7])
				link(c[5], c[6])
			}
			link(c[0], c[7])
			link(c[1], c[6])
			link(c[2], c[5])
			link(c[3], c[4])
		})
	}

	if o.Volume {
		forCells(o, func(x, y, z int) {
			c := cellCorners(idx, x, y, z)
			for _, k := range kuhn {
				p := [4]int32{c[k[0]], c[k[1]], c[k[2]], c[k[3]]}
				t.VolumeConstraints = append(t.VolumeConstraints, tetra(t.Particles, p, o.VolumeCompliance, o.Pressure))
			}
		})
	}

	t.Indices = surface(t.Particles, o, idx)
	return t, nil
}

// kuhn splits a cube into six tetrahedra sharing the 0-7 diagonal.
// Corner bits: 1 = +x, 2 = +y, 4 = +z.
var kuhn = [6][4]int{
	{0, 1, 3, 7},
	{0, 1, 5, 7},
	{0, 2, 3, 7},
	{0, 2, 6, 7},
	{0, 4, 5, 7},
	{0, 4, 6, 7},
}

func forCells(o LatticeOptions, fn func(x, y, z int)) {
	for z := 0; z+1 < o.NZ; z++ {
		for y := 0; y+1 < o.NY; y++ {
			for x := 0; x+1 < o.NX; x++ {
				fn(x, y, z)
			}
		}
	}
}

func cellCorners(idx func(x, y, z int) int32, x, y, z int) [8]int32 {
	var c [8]int32
	for b := 0; b < 8; b++ {
		c[b] = idx(x+b&1, y+(b>>1)&1, z+(b>>2)&1)
	}
	return c
}

// surface triangulates the six outer faces, wound counter-clockwise seen from outside.
func surface(ps []components.Particle, o LatticeOptions, idx func(x, y, z int) int32) []int32 {
	var out []int32
	lo, hi := (&Topology{Particles: ps}).Bounds()
	center := r3.Scale(0.5, r3.Add(lo, hi))

	quad := func(a, b, c, d int32) {
		for _, tri := range [2][3]int32{{a, b, c}, {a, c, d}} {
			p0, p1, p2 := ps[tri[0]].Position, ps[tri[1]].Position, ps[tri[2]].Position
			n := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
			mid := r3.Scale(1.0/3, r3.Add(p0, r3.Add(p1, p2)))
			if r3.Dot(n, r3.Sub(mid, center)) < 0 {
				tri[1], tri[2] = tri[2], tri[1]
			}
			out = append(out, tri[0], tri[1], tri[2])
		}
	}

	for _, z := range []int{0, o.NZ - 1} {
		for y := 0; y+1 < o.NY; y++ {
			for x := 0; x+1 < o.NX; x++ {
				quad(idx(x, y, z), idx(x+1, y, z), idx(x+1, y+1, z), idx(x, y+1, z))
			}
		}
	}
	for _, y := range []int{0, o.NY - 1} {
		for z := 0; z+1 < o.NZ; z++ {
			for x := 0; x+1 < o.NX; x++ {
				quad(idx(x, y, z), idx(x+1, y, z), idx(x+1, y, z+1), idx(x, y, z+1))
			}
		}
	}
	for _, x := range []int{0, o.NX - 1} {
		for z := 0; z+1 < o.NZ; z++ {
			for y := 0; y+1 < o.NY; y++ {
				quad(idx(x, y, z), idx(x, y+1, z), idx(x, y+1, z+1), idx(x, y, z+1))
			}
		}
	}
	return out
}
