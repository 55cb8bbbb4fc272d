package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jcdickinson/doxsearch/internal/config"
	"github.com/jcdickinson/doxsearch/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show known sources and daemon state",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(resp.Sources) == 0 {
		fmt.Println("no sources loaded")
		return
	}

	for _, s := range resp.Sources {
		state := "not loaded"
		if s.Loaded {
			state = "ready"
		}
		fmt.Printf("  %s [%s] %d entries", s.Name, state, s.Entries)
		if s.Origin != "" {
			fmt.Printf("  from %s", s.Origin)
		}
		fmt.Println()
	}
	fmt.Printf("%d stored entries\n", resp.StoredEntries)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// The daemon exits right after answering, so a reset connection is fine.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
