package camera

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func near(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

func TestNew(t *testing.T) {
	cam := New(1280, 720, r3.Vec{Y: 1}, 10)

	// Eye sits at the orbit distance from the target
	if d := r3.Norm(r3.Sub(cam.Position(), cam.Target)); math.Abs(d-10) > 1e-9 {
		t.Errorf("eye distance = %f, want 10", d)
	}
	if cam.Position().Y <= cam.Target.Y {
		t.Errorf("expected eye above target with positive pitch, got %v", cam.Position())
	}
}

func TestScreenCenterRay(t *testing.T) {
	cam := New(1280, 720, r3.Vec{}, 8)

	// Center pixel looks straight at the target
	_, dir := cam.ScreenRay(640, 360)
	if !near(dir, cam.Forward(), 1e-9) {
		t.Errorf("center ray = %v, want forward %v", dir, cam.Forward())
	}
}

func TestWorldToScreenRoundtrip(t *testing.T) {
	cam := New(1280, 720, r3.Vec{X: 1, Y: 0.5}, 6)

	testCases := []struct{ sx, sy float64 }{
		{640, 360},  // center
		{100, 100},  // top-left
		{1200, 600}, // near bottom-right
	}

	for _, tc := range testCases {
		origin, dir := cam.ScreenRay(tc.sx, tc.sy)
		p := r3.Add(origin, r3.Scale(5, dir))
		sx, sy, ok := cam.WorldToScreen(p)
		if !ok || math.Abs(sx-tc.sx) > 1e-6 || math.Abs(sy-tc.sy) > 1e-6 {
			t.Errorf("roundtrip failed: (%f,%f) -> %v -> (%f,%f) ok=%v",
				tc.sx, tc.sy, p, sx, sy, ok)
		}
	}

	// Points behind the eye do not project
	behind := r3.Sub(cam.Position(), cam.Forward())
	if _, _, ok := cam.WorldToScreen(behind); ok {
		t.Error("point behind camera projected")
	}
}

func TestOrbitPitchClamp(t *testing.T) {
	tests := []struct {
		name   string
		dPitch float64
		want   float64
	}{
		{"up", 10, maxPitch},
		{"down", -10, -maxPitch},
		{"small", 0.1, math.Pi/6 + 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := New(800, 600, r3.Vec{}, 5)
			cam.Orbit(0, tt.dPitch)
			if math.Abs(cam.Pitch-tt.want) > 1e-12 {
				t.Errorf("Pitch = %f, want %f", cam.Pitch, tt.want)
			}
			if d := r3.Norm(r3.Sub(cam.Position(), cam.Target)); math.Abs(d-5) > 1e-9 {
				t.Errorf("orbit changed distance to %f", d)
			}
		})
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New(800, 600, r3.Vec{}, 10)

	cam.ZoomBy(2)
	if cam.Distance != 5 {
		t.Errorf("Distance = %f, want 5", cam.Distance)
	}
	cam.ZoomBy(1000)
	if cam.Distance != cam.MinDistance {
		t.Errorf("Distance = %f, want min %f", cam.Distance, cam.MinDistance)
	}
	cam.ZoomBy(1e-6)
	if cam.Distance != cam.MaxDistance {
		t.Errorf("Distance = %f, want max %f", cam.Distance, cam.MaxDistance)
	}
	cam.ZoomBy(0) // ignored
	if cam.Distance != cam.MaxDistance {
		t.Errorf("ZoomBy(0) changed distance to %f", cam.Distance)
	}
}

func TestPanKeepsTargetOnScreen(t *testing.T) {
	cam := New(1280, 720, r3.Vec{}, 10)
	before := cam.Target

	cam.Pan(100, 0)
	if near(cam.Target, before, 1e-9) {
		t.Fatal("Pan did not move the target")
	}
	// The old target moves right by the panned pixels
	sx, sy, ok := cam.WorldToScreen(before)
	if !ok || math.Abs(sx-740) > 1e-6 || math.Abs(sy-360) > 1e-6 {
		t.Errorf("old target at (%f,%f), want (740,360)", sx, sy)
	}
}

func TestReset(t *testing.T) {
	cam := New(1280, 720, r3.Vec{Y: 1}, 10)
	cam.Orbit(1, 0.3)
	cam.Pan(50, 50)
	cam.ZoomBy(3)
	cam.Reset()

	fresh := New(1280, 720, r3.Vec{Y: 1}, 10)
	if !near(cam.Position(), fresh.Position(), 1e-12) {
		t.Errorf("Reset position = %v, want %v", cam.Position(), fresh.Position())
	}
}

func TestRaySphere(t *testing.T) {
	tests := []struct {
		name   string
		origin r3.Vec
		want   float64
	}{
		{"hit", r3.Vec{Z: -5}, 4},
		{"inside", r3.Vec{}, 1},
		{"behind", r3.Vec{Z: 5}, -1},
		{"miss", r3.Vec{X: 2, Z: -5}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RaySphere(tt.origin, r3.Vec{Z: 1}, r3.Vec{}, 1)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("RaySphere = %f, want %f", got, tt.want)
			}
		})
	}
}
