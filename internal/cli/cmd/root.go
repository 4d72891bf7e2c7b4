package cmd

import (
	"fmt"
	"os"

	"lodestone/pkg/sdk"

	"github.com/spf13/cobra"
)

var (
	Client  *sdk.Client
	BaseURL string
	Token   string
)

var RootCmd = &cobra.Command{
	Use:   "lodestone-cli",
	Short: "Operator CLI for the Lodestone coordinator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Client = sdk.NewClient(BaseURL, Token)
	},
	Run: func(cmd *cobra.Command, args []string) {
		RunWatch()
	},
}

func Execute(port int) {
	RootCmd.PersistentFlags().StringVar(&BaseURL, "url", fmt.Sprintf("http://localhost:%d", port), "URL of the Lodestone coordinator")
	RootCmd.PersistentFlags().StringVar(&Token, "token", os.Getenv("LODESTONE_TOKEN"), "API token (defaults to $LODESTONE_TOKEN)")

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
