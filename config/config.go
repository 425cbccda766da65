// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/squish/coloring"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Body      BodyConfig      `yaml:"body"`
	Scene     SceneConfig     `yaml:"scene"`
	Collision CollisionConfig `yaml:"collision"`
	Sleep     SleepConfig     `yaml:"sleep"`
	Readback  ReadbackConfig  `yaml:"readback"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Stream    StreamConfig    `yaml:"stream"`
	Debug     DebugConfig     `yaml:"debug"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// PhysicsConfig holds the step parameters shared by every body.
type PhysicsConfig struct {
	TickRate            float64                `yaml:"tick_rate"` // ticks per second
	Substeps            int                    `yaml:"substeps"`
	Iterations          int                    `yaml:"iterations"`
	Gravity             []float64              `yaml:"gravity"`        // x, y, z
	Damping             float64                `yaml:"damping"`        // per second, during integration
	GlobalDamping       float64                `yaml:"global_damping"` // per second, after reconciliation
	LambdaDecay         float64                `yaml:"lambda_decay"`
	MaxSpeed            float64                `yaml:"max_speed"`
	CollisionCompliance float64                `yaml:"collision_compliance"`
	CollisionsEnabled   bool                   `yaml:"collisions_enabled"`
	Coloring            string                 `yaml:"coloring"` // greedy, naive, none, clustering, spectral
	Workers             int                    `yaml:"workers"`  // 0 = GOMAXPROCS
	SerialThreshold     int                    `yaml:"serial_threshold"`
	Quality             string                 `yaml:"quality"`
	QualityTiers        map[string]QualityTier `yaml:"quality_tiers"`
}

// QualityTier scales solver effort.
type QualityTier struct {
	IterationScale float64 `yaml:"iteration_scale"`
	ExtraDamping   float64 `yaml:"extra_damping"` // added to global damping
}

// BodyConfig describes the lattice used for every soft body.
type BodyConfig struct {
	NX               int     `yaml:"nx"`
	NY               int     `yaml:"ny"`
	NZ               int     `yaml:"nz"`
	Spacing          float64 `yaml:"spacing"`
	Mass             float64 `yaml:"mass"` // per particle
	Compliance       float64 `yaml:"compliance"`
	Shear            bool    `yaml:"shear"`
	Volume           bool    `yaml:"volume"`
	VolumeCompliance float64 `yaml:"volume_compliance"`
	Pressure         float64 `yaml:"pressure"`
}

// SceneConfig controls the initial scene.
type SceneConfig struct {
	Bodies      int     `yaml:"bodies"`
	DropHeight  float64 `yaml:"drop_height"`
	StackGap    float64 `yaml:"stack_gap"`  // vertical gap between stacked bodies
	Columns     int     `yaml:"columns"`    // bodies per stack row
	ColumnGap   float64 `yaml:"column_gap"` // horizontal spacing between stacks
	Obstacles   bool    `yaml:"obstacles"`
	FloorSize   float64 `yaml:"floor_size"`
	SweeperRate float64 `yaml:"sweeper_rate"` // rad/s of the moving paddle, 0 = none
}

// CollisionConfig holds collider gathering parameters.
type CollisionConfig struct {
	RefreshInterval     float64 `yaml:"refresh_interval"` // seconds
	ProxyInterval       float64 `yaml:"proxy_interval"`   // seconds
	MaxEnvironment      int     `yaml:"max_environment"`
	MaxTotal            int     `yaml:"max_total"`
	InteractionDistance float64 `yaml:"interaction_distance"`
	InteractionStrength float64 `yaml:"interaction_strength"`
	ImpactRadius        float64 `yaml:"impact_radius"`
}

// SleepConfig holds the sleep thresholds.
type SleepConfig struct {
	Enabled           bool    `yaml:"enabled"`
	VelocityThreshold float64 `yaml:"velocity_threshold"`
	TimeThreshold     float64 `yaml:"time_threshold"`
	SampleInterval    float64 `yaml:"sample_interval"`
	ImpactThreshold   float64 `yaml:"impact_threshold"`
	WakeRadius        float64 `yaml:"wake_radius"`
	ProximityInterval float64 `yaml:"proximity_interval"`
	JustWokeWindow    float64 `yaml:"just_woke_window"`
}

// ReadbackConfig holds vertex readback parameters.
type ReadbackConfig struct {
	Cooldown float64 `yaml:"cooldown"` // seconds after a failed readback
}

// TelemetryConfig holds telemetry and stats parameters.
type TelemetryConfig struct {
	StatsWindow     float64 `yaml:"stats_window"`     // seconds
	PerfWindow      int     `yaml:"perf_window"`      // ticks
	BookmarkHistory int     `yaml:"bookmark_history"` // windows
}

// StreamConfig holds the vertex stream server parameters.
type StreamConfig struct {
	Addr     string `yaml:"addr"`
	Interval int    `yaml:"interval"` // ticks between frames
}

// DebugConfig holds debug toggles.
type DebugConfig struct {
	Enabled       bool `yaml:"enabled"`
	DrawParticles bool `yaml:"draw_particles"`
	DrawProxies   bool `yaml:"draw_proxies"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT               float64 // seconds per tick
	SubstepDT        float64
	Gravity          r3.Vec
	Iterations       int     // after the quality tier
	GlobalDamping    float64 // after the quality tier
	Coloring         coloring.Kind
	ReadbackCooldown time.Duration
	ScreenW32        float32
	ScreenH32        float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config and rejects values the
// simulation cannot run with.
func (c *Config) computeDerived() error {
	if c.Physics.TickRate <= 0 {
		return fmt.Errorf("physics.tick_rate must be positive, got %v", c.Physics.TickRate)
	}
	if c.Physics.Substeps < 1 {
		c.Physics.Substeps = 1
	}
	if len(c.Physics.Gravity) != 3 {
		return fmt.Errorf("physics.gravity needs 3 components, got %d", len(c.Physics.Gravity))
	}

	c.Derived.DT = 1 / c.Physics.TickRate
	c.Derived.SubstepDT = c.Derived.DT / float64(c.Physics.Substeps)
	c.Derived.Gravity = r3.Vec{X: c.Physics.Gravity[0], Y: c.Physics.Gravity[1], Z: c.Physics.Gravity[2]}

	kind, err := coloring.ParseKind(c.Physics.Coloring)
	if err != nil {
		return fmt.Errorf("physics.coloring: %w", err)
	}
	c.Derived.Coloring = kind

	tier := QualityTier{IterationScale: 1}
	if c.Physics.Quality != "" {
		t, ok := c.Physics.QualityTiers[c.Physics.Quality]
		if !ok {
			return fmt.Errorf("physics.quality: unknown tier %q", c.Physics.Quality)
		}
		tier = t
	}
	if tier.IterationScale <= 0 {
		tier.IterationScale = 1
	}
	c.Derived.Iterations = max(1, int(math.Round(float64(c.Physics.Iterations)*tier.IterationScale)))
	c.Derived.GlobalDamping = c.Physics.GlobalDamping + tier.ExtraDamping

	c.Derived.ReadbackCooldown = time.Duration(c.Readback.Cooldown * float64(time.Second))
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)
	return nil
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() error {
	return c.computeDerived()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
