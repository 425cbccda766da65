package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title        string
	Bodies       int
	Asleep       int
	Colliders    int
	Particles    int
	Tick         int32
	SimTime      float64 // seconds
	Speed        int
	FPS          int32
	TickTime     time.Duration
	Paused       bool
	Viewers      int
	ScreenWidth  int32
	ScreenHeight int32
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	// Title
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	// Scene counts
	rl.DrawText(
		fmt.Sprintf("Bodies: %d (%d asleep) | Particles: %d | Colliders: %d", data.Bodies, data.Asleep, data.Particles, data.Colliders),
		10, 35, 16, rl.LightGray,
	)

	// Simulation info
	rl.DrawText(
		fmt.Sprintf("Tick: %d (%.1fs) | Speed: %dx | FPS: %d | Step: %s", data.Tick, data.SimTime, data.Speed, data.FPS, data.TickTime.Round(time.Microsecond)),
		10, 55, 16, rl.LightGray,
	)

	// Status
	statusText := "Running"
	if data.Paused {
		statusText = "PAUSED  [N] step"
	}
	rl.DrawText(statusText, 10, 75, 16, rl.Yellow)

	if data.Viewers > 0 {
		rl.DrawText(fmt.Sprintf("Streaming to %d", data.Viewers), 10, 95, 14, rl.SkyBlue)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanelData holds performance metrics for display.
type PerfPanelData struct {
	StageTimes map[string]time.Duration // average per stage
	Total      time.Duration
	Workers    int
	Dispatches uint64
}

// PerfPanel renders the tick stage breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(data PerfPanelData, sortedNames []string) {
	x := p.x
	y := p.y

	rl.DrawText("Tick Stages", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Total: %s", data.Total.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16
	rl.DrawText(fmt.Sprintf("Workers: %d | Dispatches: %d", data.Workers, data.Dispatches), x, y, 12, rl.LightGray)
	y += 16

	for i, name := range sortedNames {
		if i >= 12 {
			break
		}

		avg := data.StageTimes[name]
		pct := float64(0)
		if data.Total > 0 {
			pct = float64(avg) / float64(data.Total) * 100
		}

		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-10s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
