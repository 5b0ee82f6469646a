package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/localdrop/localdrop/internal/transfer"
	"github.com/localdrop/localdrop/internal/utils"
)

const redrawInterval = 100 * time.Millisecond

// ProgressBar draws one transfer's progress on a single line.
type ProgressBar struct {
	name    string
	bar     progress.Model
	tracker *transfer.Tracker
	quiet   bool

	mu       sync.Mutex
	lastDraw time.Time
}

// NewProgressBar starts a bar for a transfer of total bytes.
func NewProgressBar(mode string, name string, total int64) *ProgressBar {
	icon := IconSend
	if mode == "receive" {
		icon = IconReceive
	}
	return &ProgressBar{
		name: fmt.Sprintf("%s %s", icon, utils.TruncateString(name, 24)),
		bar: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		tracker: transfer.NewTracker(total),
		quiet:   !IsInteractive(),
	}
}

// Update records the cumulative byte count and redraws at most every
// redrawInterval.
func (p *ProgressBar) Update(bytes int64) {
	p.tracker.Update(bytes)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet || time.Since(p.lastDraw) < redrawInterval {
		return
	}
	p.lastDraw = time.Now()
	fmt.Print("\r\033[K" + p.view())
}

// Finish draws the final state and ends the line.
func (p *ProgressBar) Finish() transfer.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.quiet {
		fmt.Print("\r\033[K" + p.view() + "\n")
	}
	return p.tracker.Snapshot()
}

func (p *ProgressBar) view() string {
	snap := p.tracker.Snapshot()
	line := fmt.Sprintf("%-28s %s %5.1f%%  %s / %s",
		p.name,
		p.bar.ViewAs(snap.Percent/100),
		snap.Percent,
		utils.FormatSize(snap.Bytes),
		utils.FormatSize(snap.Total),
	)
	if snap.Speed > 0 {
		line += MutedStyle.Render(fmt.Sprintf("  %s", utils.FormatSpeed(snap.Speed)))
	}
	if snap.ETA > 0 {
		line += MutedStyle.Render(fmt.Sprintf("  ETA %s", utils.FormatTimeDuration(snap.ETA)))
	}
	return line
}
