package game

import (
	"fmt"
	"io"
	"time"
)

// logWriter is the destination for log output.
var logWriter io.Writer

// SetLogWriter sets the log output destination.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// Logf writes a formatted log message.
func Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if logWriter != nil {
		fmt.Fprintln(logWriter, msg)
	} else {
		fmt.Println(msg)
	}
}

// logPerfStats logs per-stage timings.
func (g *Game) logPerfStats() {
	total := g.perf.Total()
	Logf("=== Perf @ Tick %d (speed %dx) | workers %d | dispatches %d ===",
		g.tick, g.stepsPerUpdate, g.dev.Workers(), g.dev.Dispatches())
	Logf("Total step time: %s", total.Round(time.Microsecond))

	for _, name := range g.perf.SortedNames() {
		avg := g.perf.Avg(name)
		pct := float64(0)
		if total > 0 {
			pct = float64(avg) / float64(total) * 100
		}
		Logf("  %-18s %10s  %5.1f%%  (max %s)", name, avg.Round(time.Microsecond), pct, g.perf.Max(name).Round(time.Microsecond))
	}
	Logf("")
}

// logWorldState logs one line per body.
func (g *Game) logWorldState() {
	bodies := g.reg.Bodies.Snapshot()
	awake := 0
	for _, e := range bodies {
		if !e.Value.Sleep.Asleep() {
			awake++
		}
	}
	Logf("=== World @ Tick %d | bodies %d (awake %d) | colliders %d ===",
		g.tick, len(bodies), awake, g.reg.Colliders.Len())

	for _, e := range bodies {
		b := e.Value
		st := b.Solver.Stats()
		c := b.Solver.Centroid()
		Logf("  %-10s %-6s centroid (%6.2f %6.2f %6.2f)  speed %6.3f  still %4.1fs  KE %8.4f  colliders %2d  colors %2d",
			b.Name, b.Sleep.State(), c.X, c.Y, c.Z, b.Sleep.Speed(), b.Sleep.StillTime(),
			b.Solver.KineticEnergy(), st.Colliders, st.Colors)
	}
	Logf("")
}
