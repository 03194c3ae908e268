// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the seqsync viewer and catalogue for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/seqsync/internal/catalog"
	"github.com/starford/seqsync/internal/visibility"
	"github.com/starford/seqsync/internal/viewer"
)

const addressingURI = "seqsync://addressing"

// Server wraps the MCP server with seqsync tools.
type Server struct {
	mcp       *server.MCPServer
	catalog   *catalog.Catalog
	session   *viewer.Session
	onCatalog catalog.EventCallback
}

// Option configures a Server.
type Option func(*Server)

// WithCatalogEvents is called after a tool changes the catalogue.
func WithCatalogEvents(cb catalog.EventCallback) Option {
	return func(s *Server) { s.onCatalog = cb }
}

// New creates a new MCP server with all seqsync tools registered.
func New(cat *catalog.Catalog, session *viewer.Session, opts ...Option) *Server {
	s := &Server{catalog: cat, session: session, onCatalog: func(string, string) {}}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"seqsync",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	// Catalogue.
	s.mcp.AddTool(mcp.NewTool("list_structures",
		mcp.WithDescription("List catalogued structures with their chains and residue counts."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listStructures)

	s.mcp.AddTool(mcp.NewTool("search_structures",
		mcp.WithDescription("Full-text search over structure ids, names and sequences."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchStructures)

	s.mcp.AddTool(mcp.NewTool("import_structure",
		mcp.WithDescription("Import a YAML structure manifest from an http(s) URL or a base64 data URI. "+
			"The manifest is stored under its own id."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:application/yaml;base64,... URI")),
	), s.importStructure)

	// Viewer.
	s.mcp.AddTool(mcp.NewTool("load_structure",
		mcp.WithDescription("Load a structure into the viewer. Clears the selection and "+
			"cancels visibility work on the previous structure."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Structure id")),
	), s.loadStructure)

	s.mcp.AddTool(mcp.NewTool("get_sequence",
		mcp.WithDescription("Return the one-letter sequence of a chain of the loaded structure, or of every chain."),
		mcp.WithString("chain", mcp.Description("Chain id; empty for all chains")),
	), s.getSequence)

	s.mcp.AddTool(mcp.NewTool("list_chains",
		mcp.WithDescription("List chain ids of the loaded structure and the addressing scheme in use. "+
			"Hidden chains are listed too."),
	), s.listChains)

	// Selection.
	s.mcp.AddTool(mcp.NewTool("get_selection",
		mcp.WithDescription("Return the selected regions, the active region and the clipboard."),
	), s.getSelection)

	s.mcp.AddTool(mcp.NewTool("select_range",
		mcp.WithDescription("Select an inclusive residue range of one chain."),
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id")),
		mcp.WithNumber("start", mcp.Required(), mcp.Description("First residue number")),
		mcp.WithNumber("end", mcp.Required(), mcp.Description("Last residue number")),
		mcp.WithBoolean("add", mcp.Description("Add to the selection instead of replacing it")),
	), s.selectRange)

	s.mcp.AddTool(mcp.NewTool("clear_selection",
		mcp.WithDescription("Drop every selected region."),
	), s.clearSelection)

	// Visibility.
	s.mcp.AddTool(mcp.NewTool("hide",
		mcp.WithDescription("Hide a whole chain, or a residue range when start or end is given. A lone bound hides that single residue."),
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id")),
		mcp.WithNumber("start", mcp.Description("First residue number")),
		mcp.WithNumber("end", mcp.Description("Last residue number")),
	), s.hide)

	s.mcp.AddTool(mcp.NewTool("isolate_chain",
		mcp.WithDescription("Hide every chain except the given one."),
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id to keep")),
	), s.isolateChain)

	s.mcp.AddTool(mcp.NewTool("isolate_range",
		mcp.WithDescription("Hide everything outside an inclusive residue range."),
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id")),
		mcp.WithNumber("start", mcp.Required(), mcp.Description("First residue number")),
		mcp.WithNumber("end", mcp.Required(), mcp.Description("Last residue number")),
	), s.isolateRange)

	s.mcp.AddTool(mcp.NewTool("show_all",
		mcp.WithDescription("Reload the structure, restoring everything hidden."),
	), s.showAll)

	s.mcp.AddTool(mcp.NewTool("residue_action",
		mcp.WithDescription("Run a residue context-menu action on a range: hide, isolate, highlight or copy."),
		mcp.WithString("action", mcp.Required(), mcp.Enum("hide", "isolate", "highlight", "copy")),
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id")),
		mcp.WithNumber("start", mcp.Required(), mcp.Description("First residue number")),
		mcp.WithNumber("end", mcp.Required(), mcp.Description("Last residue number")),
	), s.residueAction)

	s.mcp.AddTool(mcp.NewTool("get_addressing_contract",
		mcp.WithDescription("Returns how chains and residues are addressed. "+
			"Call this before selecting or hiding residues."),
	), s.getAddressingContract)

	// Resource: addressing contract.
	s.mcp.AddResource(
		mcp.NewResource(addressingURI, "Addressing Contract",
			mcp.WithResourceDescription("Chain and residue addressing rules for seqsync tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readAddressingResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func visibilityResult(res visibility.Result) *mcp.CallToolResult {
	if !res.Success {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s", res.Action, res.Reason))
	}
	return jsonResult(res)
}

func (s *Server) listStructures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.catalog.List(ctx, req.GetInt("limit", 50), req.GetInt("offset", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"structures": rows, "total": total}), nil
}

func (s *Server) searchStructures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.catalog.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) loadStructure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.session.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("loaded: %s (chains %s)", data.ID, strings.Join(data.ChainIDs(), ", "))), nil
}

func (s *Server) getSequence(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.session.Sequence()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	want := req.GetString("chain", "")
	var b strings.Builder
	for _, c := range data.Chains {
		if want != "" && c.ID != want {
			continue
		}
		first, last, ok := c.Bounds()
		if !ok {
			continue
		}
		fmt.Fprintf(&b, ">%s %d-%d\n%s\n", c.ID, first, last, c.Slice(first, last))
	}
	if b.Len() == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("chain not found: %s", want)), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) listChains(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chains, err := s.session.AvailableChains(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"mode": s.session.Mode(), "chains": chains}), nil
}

func (s *Server) getSelection(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.session.Selection()), nil
}

func (s *Server) selectRange(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chain, start, end, err := rangeArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.session.SelectRange(chain, start, end, req.GetBool("add", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(r), nil
}

func (s *Server) clearSelection(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.ClearSelection()
	return mcp.NewToolResultText("selection cleared"), nil
}

func (s *Server) hide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chain, err := req.RequireString("chain")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target := visibility.BoundedTarget(chain, optionalInt(req, "start"), optionalInt(req, "end"))
	return visibilityResult(s.session.Hide(ctx, target)), nil
}

// optionalInt returns nil when the argument is absent. Residue 0 is a real
// auth position, so a zero default would be ambiguous.
func optionalInt(req mcp.CallToolRequest, key string) *int {
	if _, ok := req.GetArguments()[key]; !ok {
		return nil
	}
	v := req.GetInt(key, 0)
	return &v
}

func (s *Server) isolateChain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chain, err := req.RequireString("chain")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return visibilityResult(s.session.Isolate(ctx, chain)), nil
}

func (s *Server) isolateRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chain, start, end, err := rangeArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return visibilityResult(s.session.IsolateRange(ctx, chain, start, end)), nil
}

func (s *Server) showAll(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return visibilityResult(s.session.ShowAll(ctx)), nil
}

func (s *Server) residueAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := visibility.ParseAction(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chain, start, end, err := rangeArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	region, err := s.session.RegionForRange(chain, start, end)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.session.ResidueAction(ctx, action, region)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s %s failed", action, region.DefaultLabel())), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", action, region.DefaultLabel())), nil
}

func (s *Server) getAddressingContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(AddressingContract), nil
}

func (s *Server) readAddressingResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      addressingURI,
			MIMEType: "text/markdown",
			Text:     AddressingContract,
		},
	}, nil
}

func rangeArgs(req mcp.CallToolRequest) (chain string, start, end int, err error) {
	if chain, err = req.RequireString("chain"); err != nil {
		return
	}
	if start, err = req.RequireInt("start"); err != nil {
		return
	}
	end, err = req.RequireInt("end")
	return
}
