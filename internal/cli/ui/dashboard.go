package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"lodestone/pkg/sdk"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type model struct {
	table    table.Model
	servers  []sdk.Server
	sessions []sdk.Session
	status   *sdk.Status
	err      error
	width    int
	height   int
	quitting bool
	selected string
	client   *sdk.Client
}

type dashboardDataMsg struct {
	servers  []sdk.Server
	sessions []sdk.Session
	status   *sdk.Status
}

type errMsg error

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunDashboard blocks until the user quits or picks a server. It returns the
// picked server name, or "" on quit.
func RunDashboard(client *sdk.Client) string {
	columns := []table.Column{
		{Title: "Sts", Width: 3},
		{Title: "Name", Width: 18},
		{Title: "Type", Width: 8},
		{Title: "Players", Width: 9},
		{Title: "Sessions", Width: 8},
		{Title: "Version", Width: 10},
		{Title: "Heartbeat", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := model{table: t, client: client}

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	finalModel, err := program.Run()
	if err != nil {
		fmt.Printf("Error running dashboard: %v\n", err)
		os.Exit(1)
	}

	if m, ok := finalModel.(model); ok && !m.quitting {
		return m.selected
	}
	return ""
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchDataCmd(m.client), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchDataCmd(m.client)
		case "enter":
			if row := m.table.SelectedRow(); len(row) > 1 {
				m.selected = row[1]
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 10)
		m.table.SetHeight(max(msg.Height-22, 5))
	case dashboardDataMsg:
		m.err = nil
		m.servers = msg.servers
		m.sessions = msg.sessions
		m.status = msg.status
		m.updateTable()
		return m, nil
	case tickMsg:
		return m, tea.Batch(fetchDataCmd(m.client), tickCmd())
	case errMsg:
		m.err = msg
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) updateTable() {
	perServer := make(map[string]int)
	for _, s := range m.sessions {
		perServer[strings.ToLower(s.CurrentServer)]++
	}

	rows := make([]table.Row, 0, len(m.servers))
	for _, s := range m.servers {
		status := "🔴"
		if s.Status == "online" {
			status = "🟢"
		}
		rows = append(rows, table.Row{
			status,
			s.Name,
			s.Type,
			fmt.Sprintf("%d/%d", s.CurrentPlayers, s.MaxPlayers),
			fmt.Sprintf("%d", perServer[strings.ToLower(s.Name)]),
			s.Version,
			shortSince(s.LastHeartbeat),
		})
	}
	m.table.SetRows(rows)
}

func (m model) selectedPlayers() []string {
	row := m.table.SelectedRow()
	if len(row) < 2 {
		return nil
	}
	var names []string
	for _, s := range m.sessions {
		if strings.EqualFold(s.CurrentServer, row[1]) {
			names = append(names, s.Name)
		}
	}
	return names
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := headerStyle.Render("LODESTONE")
	clock := subHeaderStyle.Render(time.Now().Format("Mon Jan 2 15:04:05"))

	hostInfo := fmt.Sprintf("Coordinator: %s", m.client.BaseURL())
	if m.status != nil {
		hostInfo += fmt.Sprintf("  |  Servers: %s/%d  |  Sessions: %d  |  Bans: %d",
			onlineStyle.Render(fmt.Sprintf("%d", m.status.Online)), m.status.Servers, m.status.Sessions, m.status.ActiveBans)
	}
	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Render(lipgloss.JoinVertical(lipgloss.Center, title, clock, " ", hostInfo))

	tableBox := baseStyle.
		Width(m.width - 4).
		Render(m.table.View())

	players := m.selectedPlayers()
	playerText := descStyle.Render("No players on this server")
	if len(players) > 0 {
		playerText = strings.Join(players, ", ")
	}
	playersBox := baseStyle.
		Width(m.width - 4).
		Render(playerText)

	footer := lipgloss.NewStyle().MarginLeft(2).Render(helpLine(
		[2]string{"↑/↓", "navigate"},
		[2]string{"enter", "logs"},
		[2]string{"r", "refresh"},
		[2]string{"q", "quit"},
	))
	if m.err != nil {
		footer = messageStyle.MarginLeft(2).Render(offlineStyle.Render(m.err.Error())) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Center, headerBox, tableBox, playersBox, footer)
}

func fetchDataCmd(client *sdk.Client) tea.Cmd {
	return func() tea.Msg {
		servers, err := client.ListServers()
		if err != nil {
			return errMsg(err)
		}
		sessions, err := client.ListPlayers("")
		if err != nil {
			return errMsg(err)
		}
		// Status is cosmetic; the header simply omits it on failure.
		status, err := client.Status()
		if err != nil {
			status = nil
		}
		return dashboardDataMsg{servers: servers, sessions: sessions, status: status}
	}
}

func shortSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
