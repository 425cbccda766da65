package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// InspectorData holds the selected body's state.
type InspectorData struct {
	Name              string
	State             string
	Asleep            bool
	Particles         int
	Constraints       int
	VolumeConstraints int
	Colors            int
	Colliders         int
	MemoryBytes       int64
	CentroidX         float64
	CentroidY         float64
	CentroidZ         float64
	Speed             float64
	KineticEnergy     float64
	MaxSpeed          float64
	SpeedLimit        float64
	StillTime         float64
	SleepTime         float64 // stillness needed to sleep
	WakeReason        string
	NaNCount          int
	InfCount          int
	ReadbacksDone     uint64
	ReadbacksFailed   uint64
}

// Inspector renders the body inspection panel.
type Inspector struct {
	renderer *Renderer
	panel    PanelDescriptor
	x, y     int32
}

// NewInspector creates a new inspector panel.
func NewInspector(x, y, width int32) *Inspector {
	return &Inspector{
		renderer: NewRenderer(),
		panel:    BodyPanel(width),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the inspector position.
func (ins *Inspector) SetPosition(x, y int32) {
	ins.x = x
	ins.y = y
}

// Size returns the panel width and height.
func (ins *Inspector) Size() (w, h int32) {
	return ins.panel.Width, ins.panel.Height(ins.renderer.Theme)
}

// Anchor returns where the panel wants to sit.
func (ins *Inspector) Anchor() PanelAnchor {
	return ins.panel.Anchor
}

// Draw renders the inspector panel for the given data.
func (ins *Inspector) Draw(data *InspectorData) int32 {
	return ins.renderer.DrawPanelDescriptor(ins.x, ins.y, ins.panel, data)
}

func inspected(d any) *InspectorData {
	return d.(*InspectorData)
}

// BodyPanel describes the inspector layout.
func BodyPanel(width int32) PanelDescriptor {
	return PanelDescriptor{
		ID:     "body",
		Title:  "Body",
		Width:  width,
		Anchor: AnchorBottomLeft,
		Sections: []SectionDescriptor{
			{
				ID: "identity",
				Fields: []FieldDescriptor{
					{ID: "name", Label: "Name", Widget: WidgetText, TextGetter: func(d any) string { return inspected(d).Name }},
					{ID: "state", Label: "State", Widget: WidgetText, TextGetter: func(d any) string {
						b := inspected(d)
						if b.Asleep || b.WakeReason == "" {
							return b.State
						}
						return fmt.Sprintf("%s (%s)", b.State, b.WakeReason)
					}},
					{ID: "centroid", Label: "Centroid", Widget: WidgetText, TextGetter: func(d any) string {
						b := inspected(d)
						return fmt.Sprintf("%.2f %.2f %.2f", b.CentroidX, b.CentroidY, b.CentroidZ)
					}},
				},
			},
			{
				ID:    "topology",
				Title: "Topology",
				Fields: []FieldDescriptor{
					{ID: "particles", Label: "Particles", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 { return float32(inspected(d).Particles) }},
					{ID: "constraints", Label: "Edges", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 { return float32(inspected(d).Constraints) }},
					{ID: "volumes", Label: "Tetrahedra", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 { return float32(inspected(d).VolumeConstraints) }},
					{ID: "colors", Label: "Colors", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 { return float32(inspected(d).Colors) }},
					{ID: "memory", Label: "Memory", Widget: WidgetText, TextGetter: func(d any) string {
						return fmt.Sprintf("%.1f KiB", float64(inspected(d).MemoryBytes)/1024)
					}},
				},
			},
			{
				ID:    "motion",
				Title: "Motion",
				Fields: []FieldDescriptor{
					{ID: "speed", Label: "Speed", Widget: WidgetText, Format: "%.3f m/s", Getter: func(d any) float32 { return float32(inspected(d).Speed) }},
					{ID: "energy", Label: "Kinetic", Widget: WidgetText, Format: "%.4f J", Getter: func(d any) float32 { return float32(inspected(d).KineticEnergy) }},
					{ID: "max_speed", Label: "Peak", Widget: WidgetThresholdBar, Range: FieldRange{Max: 1},
						Getter: func(d any) float32 {
							b := inspected(d)
							if b.SpeedLimit <= 0 {
								return 0
							}
							return float32(b.MaxSpeed / b.SpeedLimit)
						}},
					{ID: "still", Label: "Still", Widget: WidgetThresholdBar, Range: FieldRange{Max: 1},
						Visible: func(d any) bool { return !inspected(d).Asleep && inspected(d).SleepTime > 0 },
						Getter: func(d any) float32 {
							b := inspected(d)
							return float32(b.StillTime / b.SleepTime)
						}},
				},
			},
			{
				ID:    "health",
				Title: "Health",
				Fields: []FieldDescriptor{
					{ID: "colliders", Label: "Colliders", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 { return float32(inspected(d).Colliders) }},
					{ID: "nonfinite", Label: "NaN / Inf", Widget: WidgetText, TextGetter: func(d any) string {
						b := inspected(d)
						return fmt.Sprintf("%d / %d", b.NaNCount, b.InfCount)
					}},
					{ID: "readbacks", Label: "Readbacks", Widget: WidgetText, TextGetter: func(d any) string {
						b := inspected(d)
						return fmt.Sprintf("%d ok, %d failed", b.ReadbacksDone, b.ReadbacksFailed)
					}},
					{ID: "status", Label: "Status", Widget: WidgetColorSwatch, ColorGetter: func(d any) rl.Color {
						b := inspected(d)
						if b.NaNCount > 0 || b.InfCount > 0 {
							return rl.Red
						}
						if b.Asleep {
							return rl.Gray
						}
						return rl.Green
					}},
				},
			},
		},
	}
}
