package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded sources, or every entry of one source",
	Example: `  doxsearch list
  doxsearch list --source sigmatransform`,
	Args: cobra.NoArgs,
	Run:  runList,
}

var listSource string

func init() {
	listCmd.Flags().StringVar(&listSource, "source", "", "list the entries of this source")
}

func runList(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		slog.Error("failed to connect to daemon", "error", err)
		os.Exit(1)
	}

	if listSource == "" {
		resp, err := client.Status(context.Background())
		if err != nil {
			slog.Error("status failed", "error", err)
			os.Exit(1)
		}
		for _, s := range resp.Sources {
			if s.Loaded {
				fmt.Printf("  %-24s %d entries\n", s.Name, s.Entries)
			}
		}
		return
	}

	resp, err := client.List(context.Background(), listSource)
	if err != nil {
		slog.Error("list failed", "source", listSource, "error", err)
		os.Exit(1)
	}
	printResults(resp.Results)
}
