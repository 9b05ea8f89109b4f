// Package dash is the terminal dashboard: a thin IPC client with no
// privileged access beyond what the CLI itself has. It polls Status on a
// timer and renders a live service table in one scrollable viewport.
package dash

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	ipcclient "github.com/servinel/daemon/internal/ipc/client"
	"github.com/servinel/daemon/internal/ipc/protocol"
)

// refreshInterval is frequent enough to feel live without hammering the
// socket; each fetch is also bounded by it as a timeout.
const refreshInterval = 500 * time.Millisecond

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	exitedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	footerStyle  = lipgloss.NewStyle().Faint(true)
)

type snapshotMsg struct {
	snap protocol.StatusSnapshot
	err  error
}

type model struct {
	app      string
	viewport viewport.Model
	last     protocol.StatusSnapshot
	err      error
	ready    bool
}

// Run starts the interactive dashboard, filtered to app if non-empty, and
// blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, app string) error {
	m := model{app: app}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchStatus(m.app), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

type tickMsg struct{}

func fetchStatus(app string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()
		resp, err := ipcclient.RequestResponse(ctx, protocol.Request{Status: &protocol.StatusRequest{App: app}})
		if err != nil {
			return snapshotMsg{err: err}
		}
		if resp.Error != nil {
			return snapshotMsg{err: fmt.Errorf("%s", resp.Error.Message)}
		}
		return snapshotMsg{snap: *resp.Status}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(renderTable(m.last))
		return m, nil

	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.last = msg.snap
		}
		if m.ready {
			m.viewport.SetContent(renderTable(m.last))
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchStatus(m.app), tickCmd())
	}
	return m, nil
}

func (m model) View() string {
	if !m.ready {
		return "loading…"
	}
	header := headerStyle.Render(fmt.Sprintf(" servinel dash — system cpu=%.1f%% mem=%s ",
		m.last.SystemCPU, humanBytes(m.last.SystemMemoryUsed)))
	footer := footerStyle.Render("q quit · arrows/pgup/pgdn scroll")
	if m.err != nil {
		footer = footerStyle.Render(fmt.Sprintf("error: %v", m.err))
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func renderTable(snap protocol.StatusSnapshot) string {
	if len(snap.Apps) == 0 {
		return "no apps registered"
	}
	var b strings.Builder
	for _, app := range snap.Apps {
		fmt.Fprintf(&b, "%s\n", app.AppName)
		for _, svc := range app.Services {
			style := stoppedStyle
			switch svc.Status {
			case "running", "starting":
				style = runningStyle
			case "exited", "unhealthy":
				style = exitedStyle
			}
			pid := "-"
			if svc.PID != nil {
				pid = fmt.Sprintf("%d", *svc.PID)
			}
			uptime := "-"
			if svc.UptimeSecs != nil {
				uptime = fmt.Sprintf("%ds", *svc.UptimeSecs)
			}
			fmt.Fprintf(&b, "  %-20s %-10s pid=%-8s up=%-8s cpu=%5.1f%% mem=%s\n",
				svc.Name, style.Render(svc.Status), pid, uptime, svc.Metrics.CPU, humanBytes(svc.Metrics.Memory))
		}
	}
	return b.String()
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
