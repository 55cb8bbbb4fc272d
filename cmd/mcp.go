package cmd

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

//go:embed mcp_prelude.md
var mcpPrelude string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server (publishes CLI instructions only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := binaryName()
		instructions := fmt.Sprintf(mcpPrelude, name) + agentHelp(rootCmd, name)

		s := server.NewMCPServer("doxsearch-cli", "0.1.0",
			server.WithInstructions(instructions),
		)
		return server.ServeStdio(s)
	},
}

// agentHelp lists the CLI commands an agent can run, with their examples
// rewritten to use name.
func agentHelp(root *cobra.Command, name string) string {
	var b strings.Builder
	b.WriteString("\n## Commands\n")
	for _, c := range root.Commands() {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" || c.Name() == "daemon" || c.Name() == "mcp" {
			continue
		}
		fmt.Fprintf(&b, "\n### %s %s\n\n%s\n", name, c.Use, c.Short)
		if c.Example != "" {
			example := strings.ReplaceAll(c.Example, "doxsearch ", name+" ")
			fmt.Fprintf(&b, "\n```\n%s\n```\n", example)
		}
	}
	return b.String()
}

// binaryName returns "doxsearch" if it's in PATH and points to the current
// binary, otherwise returns the full path to the binary.
func binaryName() string {
	exe, err := os.Executable()
	if err != nil {
		return "doxsearch"
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "doxsearch"
	}

	onPath, err := exec.LookPath("doxsearch")
	if err == nil {
		resolved, err := filepath.EvalSymlinks(onPath)
		if err == nil && resolved == exe {
			return "doxsearch"
		}
	}

	return exe
}
