package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the particle state of every body for later restore.
type Snapshot struct {
	Version int   `json:"version"`
	Tick    int32 `json:"tick"`

	Bodies []BodyState `json:"bodies"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// BodyState holds one body's particles.
type BodyState struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name"`
	Asleep    bool            `json:"asleep"`
	Particles []ParticleState `json:"particles"`
}

// ParticleState is the JSON form of a particle.
type ParticleState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	VelX    float64 `json:"vel_x"`
	VelY    float64 `json:"vel_y"`
	VelZ    float64 `json:"vel_z"`
	InvMass float64 `json:"inv_mass"`
}

// NewBodyState captures particles. Non-finite values are stored as zero so the file stays valid JSON.
func NewBodyState(id uint64, name string, asleep bool, ps []components.Particle) BodyState {
	b := BodyState{ID: id, Name: name, Asleep: asleep, Particles: make([]ParticleState, len(ps))}
	for i, p := range ps {
		pos := components.SanitizeVec(p.Position, r3.Vec{})
		vel := components.SanitizeVec(p.Velocity, r3.Vec{})
		w := p.InvMass
		if !components.Finite(w) {
			w = 0
		}
		b.Particles[i] = ParticleState{X: pos.X, Y: pos.Y, Z: pos.Z, VelX: vel.X, VelY: vel.Y, VelZ: vel.Z, InvMass: w}
	}
	return b
}

// ToParticles converts the stored state back to particles.
func (b BodyState) ToParticles() []components.Particle {
	ps := make([]components.Particle, len(b.Particles))
	for i, s := range b.Particles {
		ps[i] = components.Particle{
			Position: r3.Vec{X: s.X, Y: s.Y, Z: s.Z},
			Velocity: r3.Vec{X: s.VelX, Y: s.VelY, Z: s.VelZ},
			InvMass:  s.InvMass,
		}
	}
	return ps
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
