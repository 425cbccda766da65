package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkInstability  BookmarkType = "instability"
	BookmarkEnergySpike  BookmarkType = "energy_spike"
	BookmarkWakeCascade  BookmarkType = "wake_cascade"
	BookmarkSettled      BookmarkType = "settled"
	BookmarkReadbackLoss BookmarkType = "readback_loss"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	settledWindows int  // consecutive windows with every body asleep
	unstable       bool // instability already reported, cleared when healthy again
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark
	for _, check := range []func(WindowStats) *Bookmark{
		bd.checkInstability,
		bd.checkEnergySpike,
		bd.checkWakeCascade,
		bd.checkSettled,
		bd.checkReadbackLoss,
	} {
		if b := check(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkInstability fires once when non-finite state first shows up.
func (bd *BookmarkDetector) checkInstability(stats WindowStats) *Bookmark {
	if stats.UnstableBodies == 0 {
		bd.unstable = false
		return nil
	}
	if bd.unstable {
		return nil
	}
	bd.unstable = true
	return &Bookmark{
		Type:        BookmarkInstability,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d bodies sanitized (%d NaN, %d Inf)", stats.UnstableBodies, stats.NaNCount, stats.InfCount),
	}
}

// checkEnergySpike: kinetic energy above 3x the rolling average.
func (bd *BookmarkDetector) checkEnergySpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}
	var total float64
	for _, h := range history {
		total += h.KineticEnergy
	}
	avg := total / float64(len(history))
	if avg <= 1e-6 || stats.KineticEnergy <= avg*3 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkEnergySpike,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Kinetic energy %.3f is %.1fx average (%.3f)", stats.KineticEnergy, stats.KineticEnergy/avg, avg),
	}
}

// checkWakeCascade: at least half of the bodies woke within one window.
func (bd *BookmarkDetector) checkWakeCascade(stats WindowStats) *Bookmark {
	if stats.Bodies < 4 || stats.Wakes*2 < stats.Bodies {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkWakeCascade,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d of %d bodies woke in one window", stats.Wakes, stats.Bodies),
	}
}

// checkSettled fires once after every body stayed asleep for 3 windows.
func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	if stats.Bodies == 0 || stats.Awake > 0 {
		bd.settledWindows = 0
		return nil
	}
	bd.settledWindows++
	if bd.settledWindows != 3 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkSettled,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("All %d bodies asleep", stats.Bodies),
	}
}

// checkReadbackLoss: more failed than completed vertex readbacks.
func (bd *BookmarkDetector) checkReadbackLoss(stats WindowStats) *Bookmark {
	if stats.ReadbacksFailed == 0 || stats.ReadbacksFailed <= stats.ReadbacksDone {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkReadbackLoss,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d of %d vertex readbacks failed", stats.ReadbacksFailed, stats.ReadbacksFailed+stats.ReadbacksDone),
	}
}
