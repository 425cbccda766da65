package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/squish/coloring"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if math.Abs(cfg.Derived.DT-1.0/60) > 1e-12 {
		t.Errorf("DT = %v, want 1/60", cfg.Derived.DT)
	}
	if math.Abs(cfg.Derived.SubstepDT-1.0/120) > 1e-12 {
		t.Errorf("SubstepDT = %v, want 1/120", cfg.Derived.SubstepDT)
	}
	if cfg.Derived.Gravity.Y != -9.81 {
		t.Errorf("Gravity = %v", cfg.Derived.Gravity)
	}
	if cfg.Derived.Iterations != 4 {
		t.Errorf("Iterations = %d, want 4", cfg.Derived.Iterations)
	}
	if cfg.Derived.Coloring != coloring.KindGreedy {
		t.Errorf("Coloring = %v, want greedy", cfg.Derived.Coloring)
	}
	if cfg.Derived.ReadbackCooldown != 500*time.Millisecond {
		t.Errorf("ReadbackCooldown = %v", cfg.Derived.ReadbackCooldown)
	}
	if cfg.Collision.MaxTotal != 64 || cfg.Collision.MaxEnvironment != 48 {
		t.Errorf("collider caps = %d/%d", cfg.Collision.MaxEnvironment, cfg.Collision.MaxTotal)
	}
	if cfg.Sleep.SampleInterval != 0.1 {
		t.Errorf("sleep sample interval = %v, want 0.1", cfg.Sleep.SampleInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name       string
		yaml       string
		iterations int
		damping    float64
		kind       coloring.Kind
	}{
		{"high quality", "physics:\n  quality: high\n", 8, 0, coloring.KindGreedy},
		{"low quality", "physics:\n  quality: low\n  global_damping: 0.1\n", 2, 0.6, coloring.KindGreedy},
		{"strategy", "physics:\n  coloring: Clustering\n", 4, 0, coloring.KindClustering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Derived.Iterations != tt.iterations {
				t.Errorf("Iterations = %d, want %d", cfg.Derived.Iterations, tt.iterations)
			}
			if math.Abs(cfg.Derived.GlobalDamping-tt.damping) > 1e-12 {
				t.Errorf("GlobalDamping = %v, want %v", cfg.Derived.GlobalDamping, tt.damping)
			}
			if cfg.Derived.Coloring != tt.kind {
				t.Errorf("Coloring = %v, want %v", cfg.Derived.Coloring, tt.kind)
			}
			// untouched keys keep their defaults
			if cfg.Body.NX != 5 {
				t.Errorf("body.nx = %d, want default 5", cfg.Body.NX)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad strategy", "physics:\n  coloring: rainbow\n", "physics.coloring"},
		{"bad tier", "physics:\n  quality: ultra\n", "physics.quality"},
		{"bad gravity", "physics:\n  gravity: [0, -9.81]\n", "physics.gravity"},
		{"zero tick rate", "physics:\n  tick_rate: 0\n", "tick_rate"},
		{"bad yaml", "physics: [\n", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Body.NX = 7
	cfg.Physics.Quality = "high"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if back.Body.NX != 7 || back.Derived.Iterations != 8 {
		t.Errorf("round trip: nx %d iterations %d", back.Body.NX, back.Derived.Iterations)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("Cfg did not panic before Init")
		}
	}()
	Cfg()
}

func TestMustInit(t *testing.T) {
	saved := global
	defer func() { global = saved }()
	MustInit("")
	if Cfg().Physics.TickRate != 60 {
		t.Errorf("tick rate = %v", Cfg().Physics.TickRate)
	}
}
