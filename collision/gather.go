package collision

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// Proxy is another body as seen by collision gathering.
type Proxy struct {
	ID       uint64
	Min, Max r3.Vec // world bounds
}

// Center returns the middle of the proxy bounds.
func (p Proxy) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(p.Min, p.Max))
}

// ProxySphere approximates bounds with a sphere whose radius is half the largest extent scaled by
// strength.
func ProxySphere(p Proxy, strength float64) components.SDFCollider {
	extent := r3.Sub(p.Max, p.Min)
	return components.SDFCollider{
		Kind:     components.ColliderSphere,
		Center:   p.Center(),
		Scalar:   0.5 * components.MaxAxis(extent) * strength,
		Rotation: components.Identity,
	}
}

// GatherProxies appends sphere proxies for the other bodies within maxDistance of self, nearest
// first, up to limit entries.
func GatherProxies(dst []components.SDFCollider, self Proxy, others []Proxy, maxDistance, strength float64, limit int) []components.SDFCollider {
	if limit <= 0 {
		return dst
	}
	c := self.Center()
	type candidate struct {
		p    Proxy
		dist float64
	}
	var near []candidate
	for _, o := range others {
		if o.ID == self.ID {
			continue
		}
		d := r3.Norm(r3.Sub(o.Center(), c))
		if d > maxDistance || math.IsNaN(d) {
			continue
		}
		near = append(near, candidate{o, d})
	}
	// insertion sort, the candidate list is short
	for i := 1; i < len(near); i++ {
		for j := i; j > 0 && near[j].dist < near[j-1].dist; j-- {
			near[j], near[j-1] = near[j-1], near[j]
		}
	}
	for i := 0; i < len(near) && i < limit; i++ {
		dst = append(dst, ProxySphere(near[i].p, strength))
	}
	return dst
}

// Gatherer caches the collider set of one body. Environment colliders and body proxies are
// refreshed on independent throttled intervals and combined under the total budget.
type Gatherer struct {
	RefreshInterval float64 // seconds between environment refreshes
	ProxyInterval   float64 // seconds between proxy refreshes
	MaxEnvironment  int
	MaxTotal        int

	env        []components.SDFCollider
	proxies    []components.SDFCollider
	envTimer   float64
	proxyTimer float64
	primed     bool
}

// NewGatherer creates a gatherer with the default budgets. The first Advance always refreshes.
func NewGatherer(refresh, proxy float64) *Gatherer {
	return &Gatherer{
		RefreshInterval: refresh,
		ProxyInterval:   proxy,
		MaxEnvironment:  MaxEnvironment,
		MaxTotal:        MaxColliders,
	}
}

// Advance moves the refresh timers forward by dt and reports which caches are due.
func (g *Gatherer) Advance(dt float64) (env, proxies bool) {
	if !g.primed {
		g.primed = true
		return true, true
	}
	g.envTimer += dt
	g.proxyTimer += dt
	if g.envTimer >= g.RefreshInterval {
		g.envTimer = 0
		env = true
	}
	if g.proxyTimer >= g.ProxyInterval {
		g.proxyTimer = 0
		proxies = true
	}
	return env, proxies
}

// Invalidate forces a refresh of both caches on the next Advance.
func (g *Gatherer) Invalidate() {
	g.primed = false
}

// SetEnvironment replaces the cached environment colliders, truncated to MaxEnvironment.
func (g *Gatherer) SetEnvironment(cs []components.SDFCollider) {
	g.env = append(g.env[:0], cs[:min(len(cs), g.MaxEnvironment)]...)
}

// SetProxies replaces the cached body proxies.
func (g *Gatherer) SetProxies(cs []components.SDFCollider) {
	g.proxies = append(g.proxies[:0], cs...)
}

// ProxyBudget returns how many proxies fit next to the current environment set.
func (g *Gatherer) ProxyBudget() int {
	return max(g.MaxTotal-len(g.env), 0)
}

// Colliders appends the combined collider set to dst, environment first, capped at MaxTotal.
func (g *Gatherer) Colliders(dst []components.SDFCollider) []components.SDFCollider {
	dst = append(dst, g.env...)
	room := max(g.MaxTotal-len(g.env), 0)
	return append(dst, g.proxies[:min(len(g.proxies), room)]...)
}

// Counts returns the cached environment and proxy collider counts.
func (g *Gatherer) Counts() (env, proxies int) {
	return len(g.env), len(g.proxies)
}
