// Package game runs a scene of soft bodies and colliders on top of the solver.
package game

import (
	"log/slog"
	"runtime"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/squish/camera"
	"github.com/pthm-cable/squish/collision"
	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/config"
	"github.com/pthm-cable/squish/device"
	"github.com/pthm-cable/squish/registry"
	"github.com/pthm-cable/squish/sleep"
	"github.com/pthm-cable/squish/solver"
	"github.com/pthm-cable/squish/stream"
	"github.com/pthm-cable/squish/telemetry"
	"github.com/pthm-cable/squish/ui"
)

// Game holds the complete simulation state.
type Game struct {
	cfg    *config.Config
	world  *ecs.World
	logger *slog.Logger

	// Entity mappers
	bodyMapper     *ecs.Map2[components.Transform, components.SoftBody]
	colliderMapper *ecs.Map2[components.Transform, components.ColliderShape]
	transformMap   *ecs.Map1[components.Transform]
	softBodyMap    *ecs.Map1[components.SoftBody]
	shapeMap       *ecs.Map1[components.ColliderShape]
	orbitMap       *ecs.Map1[components.Orbit]
	impactMap      *ecs.Map1[components.Impact]

	// Filters
	orbitFilter  *ecs.Filter2[components.Transform, components.Orbit]
	impactFilter *ecs.Filter2[components.SoftBody, components.Impact]

	reg      *registry.Registry
	dev      *device.Device
	params   solver.Params
	sleepCfg sleep.Config

	// Per-tick scratch, reused to keep the step allocation free
	proxies   []collision.Proxy
	centroids map[registry.ID]bodyFrame
	env       []components.SDFCollider
	envSorted []components.SDFCollider
	gathered  []components.SDFCollider
	combined  []components.SDFCollider
	particles []components.Particle
	contacts  map[registry.ID]bool

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	perf             *PerfStats
	logStats         bool
	snapshotDir      string
	statsCallback    func(telemetry.WindowStats)

	// Remote viewers
	hub    *stream.Hub
	server *stream.Server

	// View
	camera *camera.Camera

	// State
	tick           int32
	paused         bool
	headless       bool
	stepsPerUpdate int
	selected       registry.ID
	hasSelection   bool
	spawned        int

	// UI
	overlays  *ui.OverlayRegistry
	controls  *ui.ControlsPanel
	hud       *ui.HUD
	perfPanel *ui.PerfPanel
	inspector *ui.Inspector
	debugMode bool

	// Window dimensions
	screenWidth, screenHeight float32
}

// bodyFrame caches per-body values computed once per tick.
type bodyFrame struct {
	centroid r3.Vec
	proxy    collision.Proxy
}

// NewGameWithOptions creates a game from opts.Config, or the global config when it is nil.
func NewGameWithOptions(opts Options) *Game {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	return newGame(cfg, opts)
}

func newGame(cfg *config.Config, opts Options) *Game {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	world := ecs.NewWorld()

	workers := cfg.Physics.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	dev := device.New(workers)
	if cfg.Physics.SerialThreshold > 0 {
		dev.SetSerialThreshold(cfg.Physics.SerialThreshold)
	}

	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		statsWindow = opts.StatsWindowSec
	}
	steps := opts.StepsPerUpdate
	if steps < 1 {
		steps = 1
	}

	g := &Game{
		cfg:    cfg,
		world:  world,
		logger: logger,

		bodyMapper:     ecs.NewMap2[components.Transform, components.SoftBody](world),
		colliderMapper: ecs.NewMap2[components.Transform, components.ColliderShape](world),
		transformMap:   ecs.NewMap1[components.Transform](world),
		softBodyMap:    ecs.NewMap1[components.SoftBody](world),
		shapeMap:       ecs.NewMap1[components.ColliderShape](world),
		orbitMap:       ecs.NewMap1[components.Orbit](world),
		impactMap:      ecs.NewMap1[components.Impact](world),
		orbitFilter:    ecs.NewFilter2[components.Transform, components.Orbit](world),
		impactFilter:   ecs.NewFilter2[components.SoftBody, components.Impact](world),

		reg:      registry.New(),
		dev:      dev,
		params:   solverParams(cfg),
		sleepCfg: sleepConfig(cfg),

		centroids: make(map[registry.ID]bodyFrame),
		contacts:  make(map[registry.ID]bool),

		collector:        telemetry.NewCollector(statsWindow, cfg.Derived.DT),
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarkDetector: telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistory),
		perf:             NewPerfStats(),
		logStats:         opts.LogStats,
		snapshotDir:      opts.SnapshotDir,
		statsCallback:    opts.StatsCallback,

		headless:       opts.Headless,
		stepsPerUpdate: steps,
		debugMode:      cfg.Debug.Enabled,

		overlays:  ui.NewOverlayRegistry(),
		controls:  ui.NewControlsPanel(10, 120, 220),
		hud:       ui.NewHUD(),
		perfPanel: ui.NewPerfPanel(10, 120),
		inspector: ui.NewInspector(10, 0, 280),

		screenWidth:  cfg.Derived.ScreenW32,
		screenHeight: cfg.Derived.ScreenH32,
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		logger.Error("telemetry output disabled", "dir", opts.OutputDir, "error", err)
	}
	g.outputManager = om
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config", "error", err)
	}

	g.hub = stream.NewHub(logger)
	addr := cfg.Stream.Addr
	if opts.StreamAddr != "" {
		addr = opts.StreamAddr
	}
	if addr != "" {
		g.server = stream.NewServer(addr, g.hub)
		g.server.Start()
	}

	g.overlays.SetEnabled(ui.OverlayParticles, cfg.Debug.DrawParticles)
	g.overlays.SetEnabled(ui.OverlayProxies, cfg.Debug.DrawProxies)
	g.params.Debug = g.debugMode

	g.camera = camera.New(float64(cfg.Screen.Width), float64(cfg.Screen.Height), r3.Vec{Y: 1}, 10)

	g.buildScene()
	return g
}

// config returns the configuration this game was built with.
func (g *Game) config() *config.Config {
	return g.cfg
}

// Update handles input and runs stepsPerUpdate simulation ticks unless paused.
func (g *Game) Update() {
	g.handleInput()

	if g.paused {
		return
	}
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.simulationStep()
	}
}

// UpdateHeadless runs stepsPerUpdate ticks without touching the window.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.simulationStep()
	}
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int32 {
	return g.tick
}

// Registry returns the body and collider registry.
func (g *Game) Registry() *registry.Registry {
	return g.reg
}

// SetStatsCallback installs a function called with every flushed stats window.
func (g *Game) SetStatsCallback(fn func(telemetry.WindowStats)) {
	g.statsCallback = fn
}

// Unload releases all resources.
func (g *Game) Unload() {
	if g.server != nil {
		if err := g.server.Close(); err != nil {
			g.logger.Warn("stream server close failed", "error", err)
		}
	} else {
		g.hub.Close()
	}
	for _, e := range g.reg.Bodies.Snapshot() {
		e.Value.Solver.Release()
	}
	if err := g.outputManager.Close(); err != nil {
		g.logger.Error("failed to close telemetry output", "error", err)
	}
	g.dev.Close()
}
