package coloring

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/squish/components"
)

// MaxSpectralParticles bounds the dense Laplacian the spectral strategy will factorize.
const MaxSpectralParticles = 512

// Spectral orders constraints along the Fiedler vector of the particle graph Laplacian and
// then colors them greedily. Constraints that are close on the mesh are visited together,
// which tends to produce fewer colors than input order on scrambled topologies.
type Spectral struct {
	// MaxParticles caps the eigen-decomposition size; larger graphs use input order.
	MaxParticles int
}

// Name returns the strategy name.
func (*Spectral) Name() string { return KindSpectral.String() }

// Apply colors constraints in place.
func (s *Spectral) Apply(constraints []components.Constraint, particleCount int) error {
	if err := checkIndices(constraints, particleCount); err != nil {
		return err
	}
	if len(constraints) == 0 {
		return nil
	}
	limit := s.MaxParticles
	if limit <= 0 {
		limit = MaxSpectralParticles
	}
	if particleCount < 3 || particleCount > limit {
		greedyInOrder(constraints, nil, particleCount)
		return nil
	}

	fiedler, err := fiedlerVector(constraints, particleCount)
	if err != nil {
		return err
	}

	order := make([]int, len(constraints))
	key := make([]float64, len(constraints))
	for i := range constraints {
		order[i] = i
		key[i] = fiedler[constraints[i].A] + fiedler[constraints[i].B]
	}
	sort.SliceStable(order, func(i, j int) bool {
		return key[order[i]] < key[order[j]]
	})

	greedyInOrder(constraints, order, particleCount)
	return nil
}

// fiedlerVector returns the eigenvector of the second smallest Laplacian eigenvalue.
func fiedlerVector(constraints []components.Constraint, n int) ([]float64, error) {
	lap := mat.NewSymDense(n, nil)
	for i := range constraints {
		a, b := int(constraints[i].A), int(constraints[i].B)
		if a == b {
			continue
		}
		lap.SetSym(a, b, lap.At(a, b)-1)
		lap.SetSym(a, a, lap.At(a, a)+1)
		lap.SetSym(b, b, lap.At(b, b)+1)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(lap, true); !ok {
		return nil, errors.New("laplacian eigen-decomposition did not converge")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	out := make([]float64, n)
	for i := range out {
		out[i] = vecs.At(i, 1)
	}
	return out, nil
}
