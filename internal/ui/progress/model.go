// Package progress renders a single submission round in the terminal.
package progress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-txsender/internal/ui/style"
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	help    lipgloss.Style
}

func newStyles(palette style.Palette) styles {
	return styles{
		title:   lipgloss.NewStyle().Foreground(palette.Primary).Bold(true).MarginBottom(1),
		label:   lipgloss.NewStyle().Foreground(palette.TextSecondary).Width(12),
		value:   lipgloss.NewStyle().Foreground(palette.Text).Bold(true),
		success: lipgloss.NewStyle().Foreground(palette.Success).Bold(true),
		failure: lipgloss.NewStyle().Foreground(palette.Error).Bold(true),
		help:    lipgloss.NewStyle().Foreground(palette.TextMuted),
	}
}

// Model is the bubbletea model of the progress view.
type Model struct {
	msgs    <-chan tea.Msg
	spinner spinner.Model
	bar     bprogress.Model
	styles  styles
	keys    KeyMap

	total     int
	signed    int
	confirmed int

	done      bool
	aborted   bool
	signature solana.Signature
	err       error
}

// New creates the view. msgs is fed by a Reporter.
func New(msgs <-chan tea.Msg) Model {
	palette := style.DefaultPalette()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(palette.Secondary)

	return Model{
		msgs:    msgs,
		spinner: s,
		bar:     bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithWidth(40)),
		styles:  newStyles(palette),
		keys:    DefaultKeyMap(),
	}
}

func listen(msgs <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-msgs
	}
}

// Init starts the spinner and the message listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listen(m.msgs))
}

// Update handles round messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StartMsg:
		m.total = msg.Total
		return m, listen(m.msgs)

	case SignedMsg:
		m.signed = msg.Count
		return m, listen(m.msgs)

	case ConfirmedMsg:
		if msg.Confirmed > m.confirmed {
			m.confirmed = msg.Confirmed
		}
		return m, listen(m.msgs)

	case DoneMsg:
		m.done = true
		m.signature = msg.Signature
		m.err = msg.Err
		if msg.Err == nil && m.total > 0 {
			m.confirmed = m.total
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.aborted = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Result returns the final round outcome once the view has quit. ok is
// false when the user left before the round finished.
func (m Model) Result() (result DoneMsg, ok bool) {
	return DoneMsg{Signature: m.signature, Err: m.err}, m.done
}

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.confirmed) / float64(m.total)
}

// View renders the current state.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render("Submitting transactions"))
	b.WriteString("\n")

	total := "?"
	if m.total > 0 {
		total = fmt.Sprintf("%d", m.total)
	}
	b.WriteString(m.styles.label.Render("Signed"))
	b.WriteString(m.styles.value.Render(fmt.Sprintf("%d/%s", m.signed, total)))
	b.WriteString("\n")
	b.WriteString(m.styles.label.Render("Confirmed"))
	b.WriteString(m.styles.value.Render(fmt.Sprintf("%d/%s", m.confirmed, total)))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(m.styles.failure.Render("✗ " + m.err.Error()))
	case m.done:
		b.WriteString(m.styles.success.Render("✓ Confirmed " + m.signature.String()))
	case m.aborted:
		b.WriteString(m.styles.failure.Render("Interrupted"))
	default:
		b.WriteString(m.spinner.View() + " waiting for confirmation")
		b.WriteString("\n")
		h := m.keys.Quit.Help()
		b.WriteString(m.styles.help.Render(h.Key + ": " + h.Desc))
	}
	b.WriteString("\n")
	return b.String()
}
