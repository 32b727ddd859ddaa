package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/internal/presentation/graph"
	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/editor"
	"github.com/aretw0/modelgraph/pkg/ports"
	"github.com/aretw0/modelgraph/pkg/session"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionURIPrefix prefixes session resources.
const SessionURIPrefix = "modelgraph://sessions/"

// SessionArgs selects a session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// CreateSessionArgs are the arguments of create_session.
type CreateSessionArgs struct {
	ModelID string `json:"model_id"`
	Dataset string `json:"dataset"`
}

// AddNodeArgs are the arguments of add_node.
// Either TemplateIndex or Label must be given.
type AddNodeArgs struct {
	SessionID     string  `json:"session_id"`
	TemplateIndex *int    `json:"template_index"`
	Label         string  `json:"label"`
	Type          string  `json:"type"`
	Chain         bool    `json:"chain"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
}

// ConnectArgs are the arguments of connect.
type ConnectArgs struct {
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
}

// RemoveNodeArgs are the arguments of remove_node.
type RemoveNodeArgs struct {
	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id"`
}

// RemoveEdgeArgs are the arguments of remove_edge.
type RemoveEdgeArgs struct {
	SessionID string `json:"session_id"`
	EdgeID    string `json:"edge_id"`
}

// TemplateList is the output of list_templates.
type TemplateList struct {
	Templates []domain.NodeTemplate `json:"templates" jsonschema_description:"Node templates; the index is the template identity"`
}

// NodeResponse is the output of add_node.
type NodeResponse struct {
	Node      domain.Node `json:"node"`
	ChainTail string      `json:"chain_tail,omitempty" jsonschema_description:"Node the next chained add connects from"`
}

// CompileResponse is the output of compile_graph.
type CompileResponse struct {
	Fingerprint string                 `json:"fingerprint" jsonschema_description:"Short content hash of the canonical payload"`
	Request     domain.TrainingRequest `json:"request" jsonschema_description:"Payload as sent to the training service"`
}

// Server exposes session editing as MCP tools.
type Server struct {
	sessions  *session.Manager
	catalog   ports.Catalog
	submitter ports.Submitter
	logger    *slog.Logger
	version   string
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithSubmitter registers the submit_graph tool.
func WithSubmitter(s ports.Submitter) Option {
	return func(srv *Server) {
		srv.submitter = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = logger
	}
}

// WithVersion sets the version announced to clients.
func WithVersion(v string) Option {
	return func(srv *Server) {
		srv.version = v
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, cat ports.Catalog, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		catalog:  cat,
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("modelgraph-mcp", strings.TrimSpace(s.version),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	handler := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
	})(mux)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	sessionID := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to operate on"))

	s.mcpServer.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the node templates of the catalog in order."),
		mcp.WithOutputSchema[TemplateList](),
	), mcp.NewStructuredToolHandler(s.handleListTemplates))

	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create an editing session, starting from the seed graph when enabled."),
		mcp.WithString("model_id", mcp.Description("Model identifier sent with the compiled graph")),
		mcp.WithString("dataset", mcp.Description("Dataset identifier sent with the compiled graph")),
		mcp.WithOutputSchema[domain.SessionState](),
	), mcp.NewStructuredToolHandler(s.handleCreateSession))

	s.mcpServer.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Add a node from a catalog index or an ad-hoc label. With chain set, connect it from the previous chained node."),
		sessionID,
		mcp.WithNumber("template_index", mcp.Description("Catalog position of the template")),
		mcp.WithString("label", mcp.Description("Label of an ad-hoc node, used when template_index is absent")),
		mcp.WithString("type", mcp.Description("Explicit kind of an ad-hoc node")),
		mcp.WithBoolean("chain", mcp.Description("Auto-connect from the previous chained node")),
		mcp.WithNumber("x", mcp.Description("Canvas X position")),
		mcp.WithNumber("y", mcp.Description("Canvas Y position")),
		mcp.WithOutputSchema[NodeResponse](),
	), mcp.NewStructuredToolHandler(s.handleAddNode))

	s.mcpServer.AddTool(mcp.NewTool("connect",
		mcp.WithDescription("Connect two nodes with a directed edge."),
		sessionID,
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node ID")),
		mcp.WithOutputSchema[domain.Edge](),
	), mcp.NewStructuredToolHandler(s.handleConnect))

	s.mcpServer.AddTool(mcp.NewTool("remove_node",
		mcp.WithDescription("Remove a node and every edge touching it."),
		sessionID,
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithOutputSchema[domain.Graph](),
	), mcp.NewStructuredToolHandler(s.handleRemoveNode))

	s.mcpServer.AddTool(mcp.NewTool("remove_edge",
		mcp.WithDescription("Remove a single edge."),
		sessionID,
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("Edge ID")),
		mcp.WithOutputSchema[domain.Graph](),
	), mcp.NewStructuredToolHandler(s.handleRemoveEdge))

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Clear the graph and the auto-chain pointer."),
		sessionID,
		mcp.WithOutputSchema[domain.SessionState](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("compile_graph",
		mcp.WithDescription("Compile the session graph into the training payload."),
		sessionID,
		mcp.WithOutputSchema[CompileResponse](),
	), mcp.NewStructuredToolHandler(s.handleCompile))

	s.mcpServer.AddTool(mcp.NewTool("render_mermaid",
		mcp.WithDescription("Render the session graph as a Mermaid flowchart."),
		sessionID,
	), s.handleMermaid)

	if s.submitter != nil {
		s.mcpServer.AddTool(mcp.NewTool("submit_graph",
			mcp.WithDescription("Compile the session graph and send it to the training service."),
			sessionID,
		), s.handleSubmit)
	}
}

func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest, args struct{}) (TemplateList, error) {
	templates, err := s.catalog.List(ctx)
	if err != nil {
		return TemplateList{}, err
	}
	return TemplateList{Templates: templates}, nil
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest, args CreateSessionArgs) (domain.SessionState, error) {
	state, err := s.sessions.Create(ctx, domain.Metadata{ModelID: args.ModelID, Dataset: args.Dataset})
	if err != nil {
		return domain.SessionState{}, err
	}
	return *state, nil
}

func (s *Server) handleAddNode(ctx context.Context, request mcp.CallToolRequest, args AddNodeArgs) (NodeResponse, error) {
	if args.TemplateIndex == nil && args.Label == "" {
		return NodeResponse{}, errors.New("template_index or label is required")
	}

	pos := domain.Position{X: args.X, Y: args.Y}
	var node domain.Node
	state, err := s.sessions.Update(ctx, args.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		var err error
		if args.TemplateIndex != nil {
			node, err = ed.AddCatalogNode(ctx, *args.TemplateIndex, pos, args.Chain)
			return err
		}
		t := domain.NodeTemplate{Label: args.Label, Kind: args.Type}
		if args.Chain {
			node, err = ed.AddNodeAndChainFromPrevious(ctx, t, pos)
		} else {
			node, err = ed.AddNodeFromTemplate(ctx, t, pos)
		}
		return err
	})
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node, ChainTail: state.ChainTail}, nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest, args ConnectArgs) (domain.Edge, error) {
	var edge domain.Edge
	_, err := s.sessions.Update(ctx, args.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		var err error
		edge, err = ed.Connect(ctx, args.Source, args.Target)
		return err
	})
	return edge, err
}

func (s *Server) handleRemoveNode(ctx context.Context, request mcp.CallToolRequest, args RemoveNodeArgs) (domain.Graph, error) {
	state, err := s.sessions.Update(ctx, args.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		return ed.RemoveNode(ctx, args.NodeID)
	})
	if err != nil {
		return domain.Graph{}, err
	}
	return state.Graph, nil
}

func (s *Server) handleRemoveEdge(ctx context.Context, request mcp.CallToolRequest, args RemoveEdgeArgs) (domain.Graph, error) {
	state, err := s.sessions.Update(ctx, args.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		return ed.RemoveEdge(ctx, args.EdgeID)
	})
	if err != nil {
		return domain.Graph{}, err
	}
	return state.Graph, nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (domain.SessionState, error) {
	state, err := s.sessions.Update(ctx, args.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		ed.NewGraph()
		return nil
	})
	if err != nil {
		return domain.SessionState{}, err
	}
	return *state, nil
}

func (s *Server) handleCompile(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (CompileResponse, error) {
	req, err := s.sessions.Compile(ctx, args.SessionID)
	if err != nil {
		return CompileResponse{}, err
	}
	fp, err := compiler.Fingerprint(req)
	if err != nil {
		return CompileResponse{}, err
	}
	return CompileResponse{Fingerprint: fp, Request: req}, nil
}

func (s *Server) handleMermaid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.sessions.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(state.Graph, &graph.GraphOverlay{ChainTail: state.ChainTail})), nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req, err := s.sessions.Compile(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compile failed: %v", err)), nil
	}
	resp, err := s.submitter.Submit(ctx, req)
	if err != nil {
		s.logger.Warn("MCP: submission failed", "session_id", id, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resp)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: modelgraph://sessions/{id}
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(SessionURIPrefix+"{id}", "Editing Session",
		mcp.WithTemplateDescription("Graph, chain tail and metadata of a session"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(request.Params.URI, SessionURIPrefix)
		state, err := s.sessions.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		jsonBytes, err := json.Marshal(state)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	// EXPOSE: modelgraph://catalog
	s.mcpServer.AddResource(mcp.NewResource("modelgraph://catalog", "Node Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		templates, err := s.catalog.List(ctx)
		if err != nil {
			return nil, err
		}
		jsonBytes, _ := json.Marshal(templates)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "modelgraph://catalog",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
