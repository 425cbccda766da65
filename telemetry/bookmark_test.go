package telemetry

import "testing"

func hasBookmark(bs []Bookmark, typ BookmarkType) bool {
	for _, b := range bs {
		if b.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_EnergySpike(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 60), Bodies: 2, Awake: 2, KineticEnergy: 1})
	}
	got := bd.Check(WindowStats{WindowEndTick: 300, Bodies: 2, Awake: 2, KineticEnergy: 5})
	if !hasBookmark(got, BookmarkEnergySpike) {
		t.Errorf("expected energy spike, got %v", got)
	}
}

func TestBookmarkDetector_InstabilityOnce(t *testing.T) {
	bd := NewBookmarkDetector(5)
	bad := WindowStats{Bodies: 1, Awake: 1, UnstableBodies: 1, NaNCount: 3}

	if got := bd.Check(bad); !hasBookmark(got, BookmarkInstability) {
		t.Fatalf("first unstable window: got %v", got)
	}
	if got := bd.Check(bad); hasBookmark(got, BookmarkInstability) {
		t.Error("instability reported twice in a row")
	}
	bd.Check(WindowStats{Bodies: 1, Awake: 1})
	if got := bd.Check(bad); !hasBookmark(got, BookmarkInstability) {
		t.Error("instability not reported after recovery")
	}
}

func TestBookmarkDetector_Settled(t *testing.T) {
	bd := NewBookmarkDetector(5)
	asleep := WindowStats{Bodies: 3, Asleep: 3}

	var fired int
	for i := 0; i < 6; i++ {
		if hasBookmark(bd.Check(asleep), BookmarkSettled) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("settled fired %d times, want 1", fired)
	}
}

func TestBookmarkDetector_WakeCascadeAndReadbackLoss(t *testing.T) {
	bd := NewBookmarkDetector(5)
	got := bd.Check(WindowStats{Bodies: 6, Awake: 6, Wakes: 3, ReadbacksDone: 1, ReadbacksFailed: 4})
	if !hasBookmark(got, BookmarkWakeCascade) {
		t.Errorf("expected wake cascade, got %v", got)
	}
	if !hasBookmark(got, BookmarkReadbackLoss) {
		t.Errorf("expected readback loss, got %v", got)
	}

	got = bd.Check(WindowStats{Bodies: 6, Awake: 6, Wakes: 2, ReadbacksDone: 4, ReadbacksFailed: 1})
	if len(got) != 0 {
		t.Errorf("quiet window produced %v", got)
	}
}
