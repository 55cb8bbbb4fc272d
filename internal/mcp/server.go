package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jcdickinson/doxsearch/internal/daemon"
	"github.com/jcdickinson/doxsearch/internal/rpc"
	"github.com/jcdickinson/doxsearch/internal/search"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

// Backend is the subset of the daemon client the MCP server needs.
type Backend interface {
	Lookup(ctx context.Context, req rpc.LookupRequest) (*rpc.LookupResponse, error)
	Status(ctx context.Context) (*rpc.StatusResponse, error)
	Import(ctx context.Context, sources []rpc.SourceSpec, onProgress func(string)) (*rpc.ImportResponse, error)
	Get(ctx context.Context, req rpc.GetRequest) (*rpc.GetResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	backend   Backend
}

func NewServer(socketPath string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return newServer(client), nil
}

func newServer(backend Backend) *Server {
	s := &Server{backend: backend}

	mcpServer := server.NewMCPServer(
		"doxsearch",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("lookup_symbols",
			mcp.WithDescription("Case-insensitive substring lookup of symbol names in the loaded Doxygen search indexes. Returns every matching entry with its targets (anchor, scope, resolved URL) and a doxsearch:// URI that can be read as a resource. An empty query lists everything up to the limit."),
			mcp.WithString("query",
				mcp.Description("Text to look for in symbol keys and display names"),
			),
			mcp.WithArray("sources",
				mcp.Description("Optional list of source names to search; omit to search all"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default from config, 50 out of the box; negative for no limit)"),
			),
		),
		s.handleLookup,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_sources",
			mcp.WithDescription("List the Doxygen search indexes known to doxsearch, with entry counts and whether each is loaded."),
		),
		s.handleListSources,
	)

	mcpServer.AddTool(
		mcp.NewTool("import_index",
			mcp.WithDescription("Import a Doxygen HTML search index. Paths may be a search/ directory, a single search-data script, or http(s) URLs of scripts. Re-importing a name replaces it. Synchronous; returns when the index is published."),
			mcp.WithString("name",
				mcp.Description("Source name, used in lookups and URIs"),
				mcp.Required(),
			),
			mcp.WithArray("paths",
				mcp.Description("Directories, script files or URLs to read"),
				mcp.Items(map[string]interface{}{"type": "string"}),
				mcp.Required(),
			),
			mcp.WithString("base_url",
				mcp.Description("URL of the search/ directory the anchors are relative to (defaults to the first path)"),
			),
		),
		s.handleImport,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			search.URIScheme+"{source}/{key}",
			"Doxygen index entry",
			mcp.WithTemplateDescription("Read an index entry as markdown with links to every target. lookup_symbols returns these URIs."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func (s *Server) handleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var lookupReq rpc.LookupRequest
	lookupReq.Query, _ = args["query"].(string)
	if sourcesRaw, ok := args["sources"]; ok {
		sourcesJSON, _ := json.Marshal(sourcesRaw)
		if err := json.Unmarshal(sourcesJSON, &lookupReq.Sources); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid sources parameter: %v", err)), nil
		}
	}
	if limit, ok := args["limit"].(float64); ok {
		lookupReq.Limit = int(limit)
	}

	resp, err := s.backend.Lookup(ctx, lookupReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.backend.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing sources failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Sources, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}

	spec := rpc.SourceSpec{Name: name}
	pathsJSON, err := json.Marshal(args["paths"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid paths parameter: %v", err)), nil
	}
	if err := json.Unmarshal(pathsJSON, &spec.Paths); err != nil || len(spec.Paths) == 0 {
		return mcp.NewToolResultError("missing required parameter: paths"), nil
	}
	spec.BaseURL, _ = args["base_url"].(string)

	resp, err := s.backend.Import(ctx, []rpc.SourceSpec{spec}, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to import %s: %v", name, err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Results, "", "  ")
	for _, r := range resp.Results {
		if r.Error != "" {
			return mcp.NewToolResultError(string(resultJSON)), nil
		}
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// parseURI splits doxsearch://<source>/<key>, unescaping the key.
func parseURI(uri string) (source, key string, err error) {
	trimmed, ok := strings.CutPrefix(uri, search.URIScheme)
	if !ok {
		return "", "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	source, escaped, ok := strings.Cut(trimmed, "/")
	if !ok || source == "" || escaped == "" {
		return "", "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	key, err = url.PathUnescape(escaped)
	if err != nil {
		return "", "", fmt.Errorf("invalid resource URI %s: %w", uri, err)
	}
	return source, key, nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	source, key, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.backend.Get(ctx, rpc.GetRequest{Source: source, Key: key})
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
