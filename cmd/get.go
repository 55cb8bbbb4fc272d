package cmd

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/jcdickinson/doxsearch/internal/rpc"
	"github.com/jcdickinson/doxsearch/internal/search"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <doxsearch://source/key>",
	Short: "Render an index entry as markdown",
	Example: `  doxsearch get doxsearch://sigmatransform/shearlet2d
  doxsearch get eigen/setzero`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

func runGet(cmd *cobra.Command, args []string) {
	uri := strings.TrimPrefix(args[0], search.URIScheme)
	source, escaped, ok := strings.Cut(uri, "/")
	if !ok || source == "" || escaped == "" {
		log.Fatalf("invalid URI: need source/key")
	}
	key, err := url.PathUnescape(escaped)
	if err != nil {
		log.Fatalf("invalid URI: %v", err)
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Get(context.Background(), rpc.GetRequest{Source: source, Key: key})
	if err != nil {
		log.Fatalf("get failed: %v", err)
	}

	fmt.Print(resp.Markdown)
}
