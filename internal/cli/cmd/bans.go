package cmd

import (
	"fmt"
	"log"
	"time"

	"lodestone/pkg/sdk"

	"github.com/spf13/cobra"
)

var banName, banReason, banBy, banDuration, unbanBy string

var banCmd = &cobra.Command{
	Use:   "ban [uuid]",
	Short: "Ban a player network-wide",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleBan(sdk.BanRequest{
			UUID:     args[0],
			Name:     banName,
			Reason:   banReason,
			By:       banBy,
			Duration: banDuration,
		})
	},
}

var unbanCmd = &cobra.Command{
	Use:   "unban [uuid]",
	Short: "Lift a ban",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := Client.Unban(args[0], unbanBy); err != nil {
			log.Fatalf("Error unbanning: %v", err)
		}
		fmt.Println("Ban lifted.")
	},
}

var bansCmd = &cobra.Command{
	Use:   "bans [uuid]",
	Short: "List active bans, or check one player",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			handleCheckBan(args[0])
			return
		}
		handleListBans()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [uuid]",
	Short: "Show the ban history of a player",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleHistory(args[0])
	},
}

func init() {
	banCmd.Flags().StringVar(&banName, "name", "", "Player name")
	banCmd.Flags().StringVar(&banReason, "reason", "", "Reason shown to the player")
	banCmd.Flags().StringVar(&banBy, "by", "", "Operator issuing the ban")
	banCmd.Flags().StringVar(&banDuration, "duration", "", "Temporary ban length, e.g. 72h")
	banCmd.MarkFlagRequired("name")

	unbanCmd.Flags().StringVar(&unbanBy, "by", "", "Operator lifting the ban")

	RootCmd.AddCommand(banCmd, unbanCmd, bansCmd, historyCmd)
}

func expiry(b sdk.Ban) string {
	if b.ExpiresAt == nil {
		return "never"
	}
	return b.ExpiresAt.Local().Format(time.DateTime)
}

func handleBan(req sdk.BanRequest) {
	b, err := Client.Ban(req)
	if err != nil {
		log.Fatalf("Error banning: %v", err)
	}
	fmt.Printf("Banned %s (%s), expires: %s\n", b.Name, b.UUID, expiry(*b))
}

func handleCheckBan(uuid string) {
	st, err := Client.IsBanned(uuid)
	if err != nil {
		log.Fatalf("Error checking ban: %v", err)
	}
	if !st.Banned || st.Ban == nil {
		fmt.Printf("%s is not banned\n", uuid)
		return
	}
	fmt.Printf("%s is banned: %s (by %s, expires: %s)\n", st.Ban.Name, st.Ban.Reason, st.Ban.By, expiry(*st.Ban))
}

func handleListBans() {
	bans, err := Client.ListBans()
	if err != nil {
		log.Fatalf("Error listing bans: %v", err)
	}

	w := newTable()
	fmt.Fprintln(w, "NAME\tUUID\tBY\tISSUED\tEXPIRES\tREASON")
	for _, b := range bans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Name, b.UUID, b.By, b.IssuedAt.Local().Format(time.DateTime), expiry(b), b.Reason)
	}
	w.Flush()
}

func handleHistory(uuid string) {
	entries, err := Client.BanHistory(uuid)
	if err != nil {
		log.Fatalf("Error getting history: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("No history.")
		return
	}

	w := newTable()
	fmt.Fprintln(w, "AT\tACTION\tACTOR\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Action, e.Actor, e.Reason)
	}
	w.Flush()
}
