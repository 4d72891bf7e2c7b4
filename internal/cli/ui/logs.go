package ui

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"lodestone/pkg/sdk"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

type logModel struct {
	sub      chan string
	viewport viewport.Model
	ready    bool
	server   string
	detail   *sdk.ServerDetail
	lines    []string
	back     bool
	client   *sdk.Client
	width    int
	height   int
}

type logMsg string
type serverDetailsMsg *sdk.ServerDetail

const maxLogLines = 2000

func waitForLog(sub chan string) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return nil
		}
		return logMsg(msg)
	}
}

func getServerDetails(client *sdk.Client, name string) tea.Cmd {
	return func() tea.Msg {
		detail, err := client.GetServer(name)
		if err != nil {
			return nil
		}
		return serverDetailsMsg(detail)
	}
}

func (m logModel) Init() tea.Cmd {
	return tea.Batch(waitForLog(m.sub), getServerDetails(m.client, m.server), tickCmd())
}

func (m logModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			m.back = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 9
		if !m.ready {
			m.viewport = viewport.New(msg.Width-6, msg.Height-headerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 6
			m.viewport.Height = msg.Height - headerHeight
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))

	case logMsg:
		m.lines = append(m.lines, string(msg))
		if len(m.lines) > maxLogLines {
			m.lines = m.lines[len(m.lines)-maxLogLines:]
		}
		if m.ready {
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
		}
		return m, waitForLog(m.sub)

	case serverDetailsMsg:
		m.detail = msg

	case tickMsg:
		return m, tea.Batch(getServerDetails(m.client, m.server), tickCmd())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m logModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	title := headerStyle.Width(m.width).Render("SERVER LOGS: " + m.server)

	info := "Loading server details..."
	if m.detail != nil {
		s := m.detail.Server
		status := offlineStyle.Render("offline")
		if s.Status == "online" {
			status = onlineStyle.Render("online")
		}
		info = fmt.Sprintf("%s  •  %s  •  %s:%d  •  Players: %d/%d",
			s.Name, status, s.Host, s.Port, s.CurrentPlayers, s.MaxPlayers)
	}

	infoBox := baseStyle.Width(m.width - 4).Align(lipgloss.Center).Render(info)
	console := baseStyle.Width(m.width - 4).Render(m.viewport.View())
	footer := lipgloss.NewStyle().Width(m.width).Align(lipgloss.Center).Render(helpLine(
		[2]string{"esc", "back"},
		[2]string{"q", "quit"},
	))

	return lipgloss.JoinVertical(lipgloss.Center, title, infoBox, console, footer)
}

// logLine extracts the printable line from a fan-out message, skipping
// subscription acknowledgements.
func logLine(raw []byte) (string, bool) {
	var ev sdk.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return string(raw), true
	}
	if len(ev.Payload) == 0 {
		return "", false
	}
	var line string
	if err := json.Unmarshal(ev.Payload, &line); err != nil {
		return string(ev.Payload), true
	}
	return line, true
}

// RunLogs tails the logs/<server> channel. It reports whether the user asked
// to go back.
func RunLogs(client *sdk.Client, server string) bool {
	wsURL, err := client.GetWebSocketURL("logs/" + strings.ToLower(server))
	if err != nil {
		log.Fatal("Error parsing base URL:", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Printf("Error connecting to logs: %v\nPress Enter to continue...", err)
		fmt.Scanln()
		return true
	}
	defer conn.Close()

	sub := make(chan string)
	go func() {
		defer close(sub)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if line, ok := logLine(message); ok {
				sub <- line
			}
		}
	}()

	p := tea.NewProgram(
		logModel{sub: sub, server: server, client: client},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	m, err := p.Run()
	if err != nil {
		log.Printf("Error running logs UI: %v", err)
		return true
	}

	if lm, ok := m.(logModel); ok {
		return lm.back
	}
	return false
}
