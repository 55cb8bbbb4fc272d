package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jcdickinson/doxsearch/internal/config"
	"github.com/jcdickinson/doxsearch/internal/rpc"
	"github.com/jcdickinson/doxsearch/internal/search"
	"github.com/jcdickinson/doxsearch/internal/searchdata"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Look up symbols by case-insensitive substring",
	Example: `  doxsearch lookup shear
  doxsearch lookup --source eigen setzero
  doxsearch lookup --limit -1 --json set`,
	Args: cobra.ExactArgs(1),
	Run:  runLookup,
}

var (
	lookupSources []string
	lookupLimit   int
	lookupJSON    bool
	lookupLocal   bool
)

func init() {
	lookupCmd.Flags().StringSliceVar(&lookupSources, "source", nil, "restrict to specific sources (repeatable)")
	lookupCmd.Flags().IntVar(&lookupLimit, "limit", 0, "max results (0 uses lookup.limit from config, negative for no limit)")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "output as JSON")
	lookupCmd.Flags().BoolVar(&lookupLocal, "local", false, "answer from the built-in index without a daemon")
}

func runLookup(cmd *cobra.Command, args []string) {
	req := rpc.LookupRequest{Query: args[0], Sources: lookupSources, Limit: lookupLimit}

	var resp *rpc.LookupResponse
	var err error
	if lookupLocal {
		resp, err = lookupBuiltin(req)
	} else {
		client, cerr := connectDaemon()
		if cerr != nil {
			log.Fatalf("failed to connect to daemon: %v", cerr)
		}
		resp, err = client.Lookup(context.Background(), req)
	}
	if err != nil {
		log.Fatalf("lookup failed: %v", err)
	}

	if lookupJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}
	printResults(resp.Results)
	if resp.Truncated {
		fmt.Printf("(showing the first %d results; raise --limit for more)\n", len(resp.Results))
	}
}

// lookupBuiltin answers a lookup from the embedded index in-process.
func lookupBuiltin(req rpc.LookupRequest) (*rpc.LookupResponse, error) {
	table, err := searchdata.Builtin()
	if err != nil {
		return nil, err
	}
	catalog := search.NewCatalog()
	if err := catalog.Publish(searchdata.BuiltinSource, table, ""); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		limit = cfg.Lookup.Limit
	}

	results, truncated, err := catalog.Lookup(req.Query, req.Sources, limit)
	if err != nil {
		return nil, err
	}
	return &rpc.LookupResponse{Results: results, Truncated: truncated}, nil
}

func printResults(results []rpc.SymbolResult) {
	if len(results) == 0 {
		fmt.Println("no results")
		return
	}

	for _, r := range results {
		fmt.Printf("%s  [%s]\n", r.DisplayName, r.Source)
		for _, t := range r.Targets {
			link := t.URL
			if link == "" {
				link = t.AnchorPath
			}
			scope := t.ScopeLabel
			if scope == "" {
				scope = "-"
			}
			ext := ""
			if t.External {
				ext = " (external)"
			}
			fmt.Printf("    %s  %s%s\n", scope, link, ext)
		}
	}
}
