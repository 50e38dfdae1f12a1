package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/parceltrack/internal/client"
	"github.com/alfredjeanlab/parceltrack/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool
	noColor    bool

	ptClient client.ParcelTrackClient
)

func defaultServerURL() string {
	if s := os.Getenv("PARCELTRACK_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// noClient is installed as PersistentPreRunE on commands that do not talk
// to a running server.
func noClient(cmd *cobra.Command, args []string) error {
	applyColor()
	return nil
}

func applyColor() {
	ui.SetColor(!noColor && ui.ShouldUseColor(os.Stdout))
}

var rootCmd = &cobra.Command{
	Use:          "parceltrack <command>",
	Short:        "Latest tracking event projection for parcel change feeds",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyColor()
		ptClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ptClient != nil {
			ptClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "parceltrack server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("PARCELTRACK_AUTH_TOKEN"), "bearer token for the server API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Query:"},
		&cobra.Group{ID: "feed", Title: "Change feed:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Query
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)

	// Change feed
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(seedCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
