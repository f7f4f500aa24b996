package main

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
)

var (
	watchTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("170")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	watchStateStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("86")).
				Bold(true)

	watchAddrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	watchHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live status view of the client's state machine",
	Long: `watch starts the client and renders its current state, bound address,
and lease lifetimes in a terminal UI, updating as the state machine
transitions. Press q or Ctrl+C to release the lease and exit.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

type watchSnapshotMsg snapshot

type watchModel struct {
	iface string
	snap  snapshot
	since time.Time
	quit  func()
}

func (m watchModel) Init() tea.Cmd {
	return tea.EnterAltScreen
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit()
			return m, tea.Quit
		}
	case watchSnapshotMsg:
		m.snap = snapshot(msg)
		m.since = time.Now()
	}
	return m, nil
}

func (m watchModel) View() string {
	title := watchTitleStyle.Render(fmt.Sprintf(" dhcp6c watch: %s ", m.iface))
	state := watchStateStyle.Render(m.snap.state.String())
	body := fmt.Sprintf("state:       %s\nsince:       %s\n", state, m.since.Format(time.RFC3339))

	if m.snap.bound {
		body += fmt.Sprintf(
			"address:     %s\npreferred:   %ds\nvalid:       %ds\n",
			watchAddrStyle.Render(m.snap.info.IAAddr.Address.String()),
			m.snap.info.IAAddr.PreferredLifetime,
			m.snap.info.IAAddr.ValidLifetime,
		)
	}

	hint := watchHintStyle.Render("press q to release and quit")
	return fmt.Sprintf("%s\n\n%s\n%s\n", title, body, hint)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}

	go s.driver.run()
	s.driver.post(s.client.Start)

	var quitOnce sync.Once
	m := watchModel{
		iface: cfg.Interface,
		snap:  snapshot{state: client.Inactive},
		since: time.Now(),
		quit:  func() { quitOnce.Do(func() { releaseAndClose(s) }) },
	}
	p := tea.NewProgram(m)

	// golang.org/x/time/rate throttles how often state transitions get
	// forwarded to the TUI, so a burst of retransmissions doesn't flood
	// the redraw loop.
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 1)
	go func() {
		for snap := range s.states {
			if !limiter.Allow() {
				continue
			}
			p.Send(watchSnapshotMsg(snap))
		}
	}()

	_, err = p.Run()
	return err
}
