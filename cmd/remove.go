package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an imported index",
	Args:  cobra.ExactArgs(1),
	Run:   runRemove,
}

func runRemove(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		slog.Error("failed to connect to daemon", "error", err)
		os.Exit(1)
	}

	if err := client.Remove(context.Background(), args[0]); err != nil {
		slog.Error("failed to remove source", "source", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("removed %s\n", args[0])
}
