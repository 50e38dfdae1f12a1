package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <tracking-reference>",
	Short:   "Show the latest event recorded for a parcel",
	GroupID: "query",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := ptClient.GetParcelItemEvent(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, rec)
		}
		printRecord(os.Stdout, rec)
		return nil
	},
}
