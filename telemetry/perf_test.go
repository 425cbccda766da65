package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorAccumulatesPhases(t *testing.T) {
	p := NewPerfCollector(4)

	for i := 0; i < 3; i++ {
		p.StartTick()
		// two substeps: the same phase started twice in one tick
		for s := 0; s < 2; s++ {
			p.StartPhase(PhaseIntegrate)
			time.Sleep(time.Millisecond)
			p.StartPhase(PhaseSolve)
			time.Sleep(time.Millisecond)
		}
		p.EndTick()
	}

	stats := p.Stats()
	if stats.AvgTickDuration < 4*time.Millisecond {
		t.Errorf("AvgTickDuration = %v, want >= 4ms", stats.AvgTickDuration)
	}
	if got := stats.PhaseAvg[PhaseSolve]; got < 2*time.Millisecond {
		t.Errorf("solve avg = %v, want >= 2ms", got)
	}
	if stats.MinTickDuration > stats.MaxTickDuration {
		t.Errorf("min %v > max %v", stats.MinTickDuration, stats.MaxTickDuration)
	}
	total := stats.PhasePct[PhaseIntegrate] + stats.PhasePct[PhaseSolve]
	if total > 100.5 {
		t.Errorf("phase shares sum to %v%%, want <= 100", total)
	}

	row := stats.ToCSV(180)
	if row.WindowEnd != 180 || row.SolvePct != stats.PhasePct[PhaseSolve] {
		t.Errorf("ToCSV = %+v", row)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	stats := NewPerfCollector(0).Stats()
	if stats.AvgTickDuration != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("empty stats = %+v, want zero", stats)
	}
}
