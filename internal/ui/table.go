package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/localdrop/localdrop/internal/presence"
	"github.com/localdrop/localdrop/internal/utils"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	return t
}

// ParticipantTable renders the members of a room. The entry matching
// selfID is marked.
func ParticipantTable(participants []presence.Participant, selfID string) string {
	if len(participants) == 0 {
		return MutedStyle.Render("Nobody else is in the room")
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "Name", "Device", "Client", "Peer"})
	for i, p := range participants {
		name := p.DisplayName
		if p.PeerID == selfID {
			name += " (you)"
		}
		client := p.ClientType
		if client == "" {
			client = presence.ClientTypeWeb
		}
		t.AppendRow(table.Row{i + 1, name, p.DeviceClass, client, shortID(p.PeerID)})
	}
	return t.Render()
}

// TransferSummary is shown once a transfer finishes.
type TransferSummary struct {
	Status   string
	Name     string
	Peer     string
	Size     int64
	Duration time.Duration
	Digest   string
	Path     string
}

func TransferSummaryView(s TransferSummary) string {
	t := newTable()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Status", s.Status})
	t.AppendRow(table.Row{"File", s.Name})
	if s.Peer != "" {
		t.AppendRow(table.Row{"Peer", s.Peer})
	}
	t.AppendRow(table.Row{"Size", utils.FormatSize(s.Size)})
	t.AppendRow(table.Row{"Duration", utils.FormatTimeDuration(s.Duration)})

	speed := "-"
	if secs := s.Duration.Seconds(); secs > 0 {
		speed = utils.FormatSpeed(float64(s.Size) / secs)
	}
	t.AppendRow(table.Row{"Avg Speed", speed})

	if s.Path != "" {
		t.AppendRow(table.Row{"Saved to", s.Path})
	}
	if s.Digest != "" {
		t.AppendRow(table.Row{"BLAKE3", s.Digest})
	}
	return t.Render()
}

func RenderTransferSummary(s TransferSummary) {
	fmt.Println()
	fmt.Println(TransferSummaryView(s))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
