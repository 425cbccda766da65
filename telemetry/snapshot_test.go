package telemetry

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/components"
)

func TestSnapshotNonFinite(t *testing.T) {
	ps := []components.Particle{
		{Position: r3.Vec{X: math.NaN(), Y: 1}, Velocity: r3.Vec{Z: math.Inf(1)}, InvMass: math.Inf(1)},
	}
	s := NewBodyState(1, "bad", false, ps).Particles[0]
	if s.X != 0 || s.Y != 1 || s.VelZ != 0 || s.InvMass != 0 {
		t.Errorf("non-finite values not zeroed: %+v", s)
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Tick:    5000,
		Bookmark: &Bookmark{
			Type: BookmarkWakeCascade,
			Tick: 5000,
		},
	}
	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_5000_wake_cascade.json"); path != want {
		t.Errorf("Path mismatch: got %s, want %s", path, want)
	}

	path, err = SaveSnapshot(&Snapshot{Version: SnapshotVersion, Tick: 3000}, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_3000.json"); path != want {
		t.Errorf("Path mismatch: got %s, want %s", path, want)
	}
}
