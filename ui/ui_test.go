package ui

import (
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
)

func TestOverlayToggle(t *testing.T) {
	r := NewOverlayRegistry()
	if len(r.EnabledOverlays()) != 0 {
		t.Fatalf("overlays enabled by default: %v", r.EnabledOverlays())
	}

	id, on, ok := r.HandleKeyPress(rl.KeyP)
	if !ok || id != OverlayParticles || !on {
		t.Fatalf("HandleKeyPress(P) = %q, %v, %v", id, on, ok)
	}
	if !r.IsEnabled(OverlayParticles) {
		t.Error("particles should be enabled")
	}
	if _, _, ok := r.HandleKeyPress(rl.KeyZ); ok {
		t.Error("unbound key should not toggle")
	}
	if r.Toggle(OverlayParticles) {
		t.Error("second toggle should disable")
	}
	if r.Toggle("missing") {
		t.Error("unknown overlay toggled on")
	}
}

func TestOverlayExclusive(t *testing.T) {
	r := NewOverlayRegistry()
	r.Register(OverlayDescriptor{ID: "solid", Category: "visual", Exclusive: []OverlayID{OverlayWireframe}})

	r.SetEnabled(OverlayWireframe, true)
	r.SetEnabled("solid", true)
	if r.IsEnabled(OverlayWireframe) {
		t.Error("enabling solid should disable wireframe")
	}

	got := r.EnabledOverlays()
	if len(got) != 1 || got[0] != "solid" {
		t.Errorf("EnabledOverlays() = %v", got)
	}
}

func TestOverlayCategories(t *testing.T) {
	r := NewOverlayRegistry()
	want := []string{"visual", "debug", "collision"}
	got := r.Categories()
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if n := len(r.ByCategory("debug")); n != 3 {
		t.Errorf("debug overlays = %d, want 3", n)
	}
}

func TestAnchorPlace(t *testing.T) {
	tests := []struct {
		anchor PanelAnchor
		x, y   int32
	}{
		{AnchorTopLeft, 10, 10},
		{AnchorTopRight, 690, 10},
		{AnchorBottomLeft, 10, 490},
		{AnchorBottomRight, 690, 490},
		{AnchorCenter, 350, 250},
	}
	for _, tt := range tests {
		x, y := tt.anchor.Place(1000, 700, 300, 200, 10)
		if x != tt.x || y != tt.y {
			t.Errorf("anchor %d: Place = (%d, %d), want (%d, %d)", tt.anchor, x, y, tt.x, tt.y)
		}
	}
}

func TestBodyPanelFields(t *testing.T) {
	p := BodyPanel(280)
	theme := DefaultTheme()
	if h := p.Height(theme); h <= theme.Padding*2 {
		t.Fatalf("Height() = %d", h)
	}

	data := &InspectorData{Name: "body-00", State: "Awake", WakeReason: "Impact", MaxSpeed: 5, SpeedLimit: 20, StillTime: 0.5, SleepTime: 1}
	seen := map[string]bool{}
	for _, s := range p.Sections {
		for _, f := range s.Fields {
			seen[f.ID] = true
			if f.Visible != nil && !f.Visible(data) {
				continue
			}
			switch {
			case f.TextGetter != nil:
				if f.TextGetter(data) == "" {
					t.Errorf("%s: empty text", f.ID)
				}
			case f.Getter != nil:
				_ = f.Getter(data)
			}
		}
	}
	for _, id := range []string{"name", "state", "particles", "still", "nonfinite"} {
		if !seen[id] {
			t.Errorf("missing field %q", id)
		}
	}

	state := fieldByID(p, "state")
	if got := state.TextGetter(data); got != "Awake (Impact)" {
		t.Errorf("state = %q", got)
	}
	if got := fieldByID(p, "max_speed").Getter(data); got != 0.25 {
		t.Errorf("max_speed ratio = %v, want 0.25", got)
	}
	data.Asleep = true
	if fieldByID(p, "still").Visible(data) {
		t.Error("still bar should hide while asleep")
	}
}

func fieldByID(p PanelDescriptor, id string) FieldDescriptor {
	for _, s := range p.Sections {
		for _, f := range s.Fields {
			if f.ID == id {
				return f
			}
		}
	}
	return FieldDescriptor{}
}
