package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jcdickinson/doxsearch/internal/rpc"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <name> <dir|file|url>...",
	Short: "Import a Doxygen search index",
	Long: `Import the search index Doxygen generates under html/search/. Each path
may be the search/ directory itself, a single search-data script, or the
http(s) URL of a script. Re-importing a name replaces the earlier index.`,
	Example: `  doxsearch import eigen ~/src/eigen/build/doc/html/search
  doxsearch import sigma ./doc/html/search/functions_73.js ./doc/html/search/all_0.js
  doxsearch import --base-url https://example.org/dox/search/ mylib https://example.org/dox/search/all_0.js`,
	Args: cobra.MinimumNArgs(2),
	Run:  runImport,
}

var importBaseURL string

func init() {
	importCmd.Flags().StringVar(&importBaseURL, "base-url", "", "URL of the search/ directory anchors are relative to (defaults to the first path)")
}

func runImport(cmd *cobra.Command, args []string) {
	spec := rpc.SourceSpec{Name: args[0], Paths: args[1:], BaseURL: importBaseURL}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Import(context.Background(), []rpc.SourceSpec{spec}, func(msg string) {
		fmt.Printf("  %s\n", msg)
	})
	if err != nil {
		log.Fatalf("failed to import %s: %v", spec.Name, err)
	}

	failed := false
	for _, r := range resp.Results {
		if r.Error != "" {
			fmt.Printf("  %s: error: %s\n", r.Name, r.Error)
			failed = true
		} else {
			fmt.Printf("  %s: %d entries from %d scripts\n", r.Name, r.Entries, r.Files)
		}
	}
	if failed {
		os.Exit(1)
	}
}
