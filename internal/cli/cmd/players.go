package cmd

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var playersServer string

var serversCmd = &cobra.Command{
	Use:   "servers [name]",
	Short: "List registered servers, or show one with its players",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			handleShowServer(args[0])
			return
		}
		handleListServers()
	},
}

var playersCmd = &cobra.Command{
	Use:   "players [uuid]",
	Short: "List online players, or show one player",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			handleShowPlayer(args[0])
			return
		}
		handleListPlayers(playersServer)
	},
}

var lastSeenCmd = &cobra.Command{
	Use:   "last-seen [uuid]",
	Short: "Show when a player was last seen",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleLastSeen(args[0])
	},
}

func init() {
	playersCmd.Flags().StringVar(&playersServer, "server", "", "Only players on this server")
	RootCmd.AddCommand(serversCmd, playersCmd, lastSeenCmd)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Truncate(time.Second).String() + " ago"
}

func handleListServers() {
	servers, err := Client.ListServers()
	if err != nil {
		log.Fatalf("Error listing servers: %v", err)
	}

	w := newTable()
	fmt.Fprintln(w, "NAME\tTYPE\tSTATUS\tPLAYERS\tADDRESS\tHEARTBEAT")
	for _, s := range servers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s:%d\t%s\n",
			s.Name, s.Type, s.Status, s.CurrentPlayers, s.MaxPlayers, s.Host, s.Port, since(s.LastHeartbeat))
	}
	w.Flush()
}

func handleShowServer(name string) {
	detail, err := Client.GetServer(name)
	if err != nil {
		log.Fatalf("Error getting server: %v", err)
	}

	s := detail.Server
	fmt.Printf("Name:      %s\n", s.Name)
	fmt.Printf("Type:      %s\n", s.Type)
	fmt.Printf("Status:    %s\n", s.Status)
	fmt.Printf("Address:   %s:%d\n", s.Host, s.Port)
	fmt.Printf("Version:   %s\n", s.Version)
	fmt.Printf("Players:   %d/%d\n", s.CurrentPlayers, s.MaxPlayers)
	fmt.Printf("Heartbeat: %s\n", since(s.LastHeartbeat))

	if len(detail.Players) == 0 {
		return
	}
	fmt.Println("\nOnline:")
	for _, p := range detail.Players {
		fmt.Printf("- %s (%s) %s\n", p.Name, p.UUID, p.Client)
	}
}

func handleListPlayers(server string) {
	sessions, err := Client.ListPlayers(server)
	if err != nil {
		log.Fatalf("Error listing players: %v", err)
	}

	w := newTable()
	fmt.Fprintln(w, "NAME\tUUID\tSERVER\tCLIENT\tONLINE FOR")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.UUID, s.CurrentServer, s.Client, time.Since(s.JoinedAt).Truncate(time.Second))
	}
	w.Flush()
	fmt.Printf("\n%d online\n", len(sessions))
}

func handleShowPlayer(uuid string) {
	p, err := Client.GetPlayer(uuid)
	if err != nil {
		log.Fatalf("Error getting player: %v", err)
	}

	fmt.Printf("UUID:   %s\n", p.UUID)
	if p.Session != nil {
		fmt.Printf("Name:   %s\n", p.Session.Name)
		fmt.Printf("Online: %s on %s (%s)\n", since(p.Session.JoinedAt), p.Session.CurrentServer, p.Session.Client)
	} else if p.Profile != nil {
		fmt.Printf("Name:   %s\n", p.Profile.Name)
		fmt.Println("Online: no")
	}
	if p.Ban != nil {
		fmt.Printf("Banned: %s (by %s)\n", p.Ban.Reason, p.Ban.By)
	}
	if len(p.Clients) > 0 {
		fmt.Println("\nClients:")
		for _, c := range p.Clients {
			fmt.Printf("- %s (first %s, last %s)\n", c.Client, c.FirstSeen.Format(time.DateTime), c.LastSeen.Format(time.DateTime))
		}
	}
}

func handleLastSeen(uuid string) {
	ls, err := Client.LastSeen(uuid)
	if err != nil {
		log.Fatalf("Error getting last seen: %v", err)
	}

	switch {
	case ls.Source == "online":
		fmt.Printf("%s is online on %s\n", uuid, ls.Server)
	case ls.At != nil:
		fmt.Printf("%s was last seen %s (%s, %s)\n", uuid, since(*ls.At), ls.Source, ls.Server)
	default:
		fmt.Printf("%s has never been seen\n", uuid)
	}
}
