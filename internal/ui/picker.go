package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/localdrop/localdrop/internal/presence"
)

// ErrCancelled is returned when the user backs out of a prompt.
var ErrCancelled = errors.New("cancelled")

type rosterMsg []presence.Participant

type rosterClosedMsg struct{}

// pickerModel lists the other participants and lets the user choose one.
// The list follows membership changes while it is shown.
type pickerModel struct {
	updates <-chan []presence.Participant
	selfID  string

	peers     []presence.Participant
	cursor    int
	spinner   spinner.Model
	chosen    *presence.Participant
	cancelled bool
}

func newPickerModel(initial []presence.Participant, updates <-chan []presence.Participant, selfID string) *pickerModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	m := &pickerModel{updates: updates, selfID: selfID, spinner: s}
	m.setPeers(initial)
	return m
}

func (m *pickerModel) setPeers(all []presence.Participant) {
	var current string
	if m.cursor < len(m.peers) {
		current = m.peers[m.cursor].PeerID
	}

	m.peers = m.peers[:0]
	for _, p := range all {
		if p.PeerID != m.selfID {
			m.peers = append(m.peers, p)
		}
	}

	m.cursor = 0
	for i, p := range m.peers {
		if p.PeerID == current {
			m.cursor = i
		}
	}
}

func (m *pickerModel) waitForRoster() tea.Cmd {
	return func() tea.Msg {
		participants, ok := <-m.updates
		if !ok {
			return rosterClosedMsg{}
		}
		return rosterMsg(participants)
	}
}

func (m *pickerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForRoster())
}

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.peers)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.peers) > 0 {
				chosen := m.peers[m.cursor]
				m.chosen = &chosen
				return m, tea.Quit
			}
		}

	case rosterMsg:
		m.setPeers(msg)
		return m, m.waitForRoster()

	case rosterClosedMsg:
		m.cancelled = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *pickerModel) View() string {
	if m.chosen != nil || m.cancelled {
		return ""
	}

	var b strings.Builder
	if len(m.peers) == 0 {
		fmt.Fprintf(&b, "%s Waiting for someone to join...\n", m.spinner.View())
	} else {
		b.WriteString(BoldStyle.Render("Send to:") + "\n\n")
		for i, p := range m.peers {
			line := fmt.Sprintf("%s %s %s", IconPeer, p.DisplayName, MutedStyle.Render("("+p.DeviceClass+")"))
			if i == m.cursor {
				b.WriteString(SelectedStyle.Render("> "+line) + "\n")
			} else {
				b.WriteString("  " + line + "\n")
			}
		}
	}
	b.WriteString("\n" + MutedStyle.Render("↑/↓ to move, enter to select, q to cancel"))
	return b.String()
}

// PickPeer lets the user choose a participant other than selfID. Without
// a terminal it picks the first one to appear.
func PickPeer(ctx context.Context, initial []presence.Participant, updates <-chan []presence.Participant, selfID string) (presence.Participant, error) {
	m := newPickerModel(initial, updates, selfID)

	if !IsInteractive() {
		return firstPeer(ctx, m)
	}

	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		if ctx.Err() != nil {
			return presence.Participant{}, ctx.Err()
		}
		return presence.Participant{}, err
	}

	result := final.(*pickerModel)
	if result.chosen == nil {
		return presence.Participant{}, ErrCancelled
	}
	return *result.chosen, nil
}

func firstPeer(ctx context.Context, m *pickerModel) (presence.Participant, error) {
	fmt.Println("Waiting for someone to join...")
	for len(m.peers) == 0 {
		select {
		case participants, ok := <-m.updates:
			if !ok {
				return presence.Participant{}, ErrCancelled
			}
			m.setPeers(participants)
		case <-ctx.Done():
			return presence.Participant{}, ctx.Err()
		}
	}
	return m.peers[0], nil
}
