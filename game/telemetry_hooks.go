package game

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/squish/components"
	"github.com/pthm-cable/squish/registry"
	"github.com/pthm-cable/squish/stream"
	"github.com/pthm-cable/squish/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.sampleBodies())
	perfStats := g.perfCollector.Stats()

	// Call stats callback if provided
	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
		g.logPerfStats()
	}

	// Write to CSV if output manager is enabled
	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	// Check for bookmarks
	bookmarks := g.bookmarkDetector.Check(stats)
	for _, bm := range bookmarks {
		if g.logStats {
			bm.LogBookmark()
		}

		if g.outputManager != nil {
			if err := g.outputManager.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}

		// Save snapshot on bookmark
		if g.snapshotDir != "" || g.outputManager != nil {
			g.saveSnapshot(&bm)
		}
	}
}

// sampleBodies collects the end-of-window state of every body.
func (g *Game) sampleBodies() []telemetry.BodySample {
	bodies := g.reg.Bodies.Snapshot()
	samples := make([]telemetry.BodySample, 0, len(bodies))
	for _, e := range bodies {
		b := e.Value
		st := b.Solver.Stats()
		diag := b.Solver.Diagnostics()
		samples = append(samples, telemetry.BodySample{
			Asleep:          b.Sleep.Asleep(),
			Particles:       st.Particles,
			Colliders:       st.Colliders,
			KineticEnergy:   b.Solver.KineticEnergy(),
			Speed:           b.Sleep.Speed(),
			MaxSpeed:        diag.MaxSpeed,
			NaNCount:        diag.NaNCount,
			InfCount:        diag.InfCount,
			ReadbacksDone:   st.ReadbacksDone,
			ReadbacksFailed: st.ReadbacksFailed,
		})
	}
	return samples
}

// saveSnapshot writes a snapshot to the snapshot directory and the output directory.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := g.createSnapshot(bookmark)

	if g.snapshotDir != "" {
		path, err := telemetry.SaveSnapshot(snapshot, g.snapshotDir)
		if err != nil {
			slog.Error("failed to save snapshot", "error", err)
		} else {
			slog.Info("snapshot saved", "path", path, "tick", g.tick)
		}
	}
	if _, err := g.outputManager.WriteSnapshot(snapshot); err != nil {
		slog.Error("failed to write snapshot", "error", err)
	}
}

// createSnapshot builds a snapshot from the current state.
func (g *Game) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		Tick:     g.tick,
		Bookmark: bookmark,
	}
	for _, e := range g.reg.Bodies.Snapshot() {
		b := e.Value
		ps := make([]components.Particle, b.Solver.ParticleCount())
		n := b.Solver.Particles(ps)
		snapshot.Bodies = append(snapshot.Bodies, telemetry.NewBodyState(uint64(e.ID), b.Name, b.Sleep.Asleep(), ps[:n]))
	}
	return snapshot
}

// RestoreSnapshot loads a snapshot and replaces the particle state of the bodies it names.
// Bodies are matched by name; unmatched entries are skipped.
func (g *Game) RestoreSnapshot(path string) error {
	snapshot, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return err
	}

	byName := make(map[string]registry.Entry[registry.Body])
	for _, e := range g.reg.Bodies.Snapshot() {
		byName[e.Value.Name] = e
	}

	restored := 0
	for _, bs := range snapshot.Bodies {
		e, ok := byName[bs.Name]
		if !ok {
			slog.Warn("snapshot body not in scene", "name", bs.Name)
			continue
		}
		if err := e.Value.Solver.ReplaceParticles(bs.ToParticles()); err != nil {
			return fmt.Errorf("restoring %s: %w", bs.Name, err)
		}
		e.Value.Sleep.Wake()
		e.Value.Gatherer.Invalidate()
		restored++
	}
	slog.Info("snapshot restored", "path", path, "tick", snapshot.Tick, "bodies", restored)
	return nil
}

// broadcastFrame sends body positions to remote viewers every stream interval.
func (g *Game) broadcastFrame() {
	if g.hub.Clients() == 0 {
		return
	}
	interval := int32(max(g.config().Stream.Interval, 1))
	if g.tick%interval != 0 {
		return
	}

	frame := stream.Frame{Tick: g.tick}
	for _, e := range g.reg.Bodies.Snapshot() {
		b := e.Value
		frame.Bodies = append(frame.Bodies, stream.BodyFrame{
			ID:        uint64(e.ID),
			Name:      b.Name,
			Asleep:    b.Sleep.Asleep(),
			Positions: b.Solver.Positions(),
			Indices:   b.Solver.Indices(),
		})
	}
	if err := g.hub.Broadcast(frame); err != nil {
		g.logger.Warn("stream broadcast failed", "error", err)
	}
}
