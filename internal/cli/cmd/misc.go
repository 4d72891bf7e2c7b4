package cmd

import (
	"fmt"
	"log"
	"time"

	"lodestone/internal/cli/ui"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

var rconCmd = &cobra.Command{
	Use:   "rcon",
	Short: "Poll every RCON target for its player list",
	Run: func(cmd *cobra.Command, args []string) {
		handleRCON()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coordinator status",
	Run: func(cmd *cobra.Command, args []string) {
		handleStatus()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of servers and sessions",
	Run: func(cmd *cobra.Command, args []string) {
		RunWatch()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [server]",
	Short: "Tail the log lines a server publishes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ui.RunLogs(Client, args[0])
	},
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the metrics page in a browser",
	Run: func(cmd *cobra.Command, args []string) {
		if err := browser.OpenURL(Client.BaseURL() + "/metrics"); err != nil {
			log.Fatalf("Error opening browser: %v", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(rconCmd, statusCmd, watchCmd, logsCmd, openCmd)
}

// RunWatch shows the dashboard and, on enter, the log tail of the selected
// server, returning to the dashboard when the tail is closed with esc.
func RunWatch() {
	for {
		server := ui.RunDashboard(Client)
		if server == "" {
			return
		}
		if back := ui.RunLogs(Client, server); !back {
			return
		}
	}
}

func handleRCON() {
	res, err := Client.RCONPlayers()
	if err != nil {
		log.Fatalf("Error polling RCON: %v", err)
	}

	for _, s := range res.Servers {
		fmt.Printf("%s (%d):\n", s.Server, len(s.Players))
		for _, p := range s.Players {
			fmt.Printf("  - %s\n", p)
		}
	}
	fmt.Printf("\n%d players on %d reachable servers\n", res.Total, len(res.Servers))
}

func handleStatus() {
	st, err := Client.Status()
	if err != nil {
		log.Fatalf("Error getting status: %v", err)
	}

	fmt.Println("\n--- COORDINATOR ---")
	fmt.Printf("PID:         %d\n", st.PID)
	fmt.Printf("Uptime:      %s\n", time.Since(st.StartedAt).Truncate(time.Second))
	fmt.Printf("CPU:         %.1f%%\n", st.CPU)
	fmt.Printf("Memory:      %.1f MB\n", float64(st.RAM)/1024/1024)
	fmt.Printf("Goroutines:  %d\n", st.Goroutines)
	fmt.Println("\n--- NETWORK ---")
	fmt.Printf("Servers:     %d (%d online)\n", st.Servers, st.Online)
	fmt.Printf("Sessions:    %d\n", st.Sessions)
	fmt.Printf("Active bans: %d\n", st.ActiveBans)
	fmt.Printf("Consumers:   %d\n", st.Consumers)
}
