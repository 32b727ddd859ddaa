package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/internal/presentation/graph"
	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/editor"
	"github.com/aretw0/modelgraph/pkg/ports"
	"github.com/aretw0/modelgraph/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

// FingerprintHeader carries the fingerprint of a compiled payload.
const FingerprintHeader = "X-Fingerprint"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// refresher is implemented by catalogs that cache their source.
type refresher interface {
	Reset()
}

// Server implements ServerInterface over a session manager.
type Server struct {
	sessions  *session.Manager
	catalog   ports.Catalog
	submitter ports.Submitter
	metrics   http.Handler
	streams   *StreamManager
	logger    *slog.Logger
	validate  *validator.Validate

	version    string
	corsOrigin string
	defaults   domain.Metadata
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// Option configures the Server.
type Option func(*Server)

// WithSubmitter enables POST /sessions/{id}/submit.
func WithSubmitter(s ports.Submitter) Option {
	return func(srv *Server) {
		srv.submitter = s
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(srv *Server) {
		srv.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = logger
	}
}

// WithVersion sets the build version reported by /info.
func WithVersion(v string) Option {
	return func(srv *Server) {
		srv.version = v
	}
}

// WithCORSOrigin sets the allowed origin. Defaults to "*".
func WithCORSOrigin(origin string) Option {
	return func(srv *Server) {
		srv.corsOrigin = origin
	}
}

// WithDefaultMetadata fills model ID and dataset of sessions created without them.
func WithDefaultMetadata(meta domain.Metadata) Option {
	return func(srv *Server) {
		srv.defaults = meta
	}
}

// NewServer creates the handler set without routing.
func NewServer(sessions *session.Manager, cat ports.Catalog, opts ...Option) *Server {
	s := &Server{
		sessions:   sessions,
		catalog:    cat,
		logger:     logging.NewNop(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		version:    "dev",
		corsOrigin: "*",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)
	return s
}

// Streams exposes the SSE fan-out.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// NewHandler creates the HTTP handler for the modelgraph API.
func NewHandler(sessions *session.Manager, cat ports.Catalog, opts ...Option) http.Handler {
	return NewServer(sessions, cat, opts...).Handler()
}

// Handler routes the server's endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.cors())

	// Swagger UI
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		spec, err := rawSpec()
		if err != nil {
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			s.logger.Error("Failed to load OpenAPI spec", "error", err)
			return
		}
		w.Write(spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return HandlerFromMux(s, r)
}

func (s *Server) cors() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{s.corsOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{FingerprintHeader},
		MaxAge:         300,
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>modelgraph API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "modelgraph-http",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

// ListCatalog handles GET /catalog.
func (s *Server) ListCatalog(w http.ResponseWriter, r *http.Request) {
	templates, err := s.catalog.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// RefreshCatalog handles POST /catalog/refresh.
func (s *Server) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if rc, ok := s.catalog.(refresher); ok {
		rc.Reset()
		s.logger.Info("Catalog cache cleared")
	}
	s.ListCatalog(w, r)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateSession handles POST /sessions. The body is optional.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if err := s.decode(r, &body, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.ModelID == "" {
		body.ModelID = s.defaults.ModelID
	}
	if body.Dataset == "" {
		body.Dataset = s.defaults.Dataset
	}

	state, err := s.sessions.Create(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, id string) {
	state, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// UpdateSessionMetadata handles PATCH /sessions/{id}.
func (s *Server) UpdateSessionMetadata(w http.ResponseWriter, r *http.Request, id string) {
	var body CreateSessionRequest
	if err := s.decode(r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}
	state, err := s.sessions.SetMetadata(r.Context(), id, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(id, "metadata_updated", state)
	writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// AddNode handles POST /sessions/{id}/nodes.
func (s *Server) AddNode(w http.ResponseWriter, r *http.Request, id string) {
	var body AddNodeRequest
	if err := s.decode(r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if (body.TemplateIndex == nil) == (body.Template == nil) {
		s.fail(w, r, badRequest(errors.New("exactly one of template_index or template is required")))
		return
	}

	var node domain.Node
	state, err := s.sessions.Update(r.Context(), id, func(ctx context.Context, ed *editor.Editor) error {
		var err error
		switch {
		case body.TemplateIndex != nil:
			node, err = ed.AddCatalogNode(ctx, *body.TemplateIndex, body.Position, body.Chain)
		case body.Chain:
			node, err = ed.AddNodeAndChainFromPrevious(ctx, *body.Template, body.Position)
		default:
			node, err = ed.AddNodeFromTemplate(ctx, *body.Template, body.Position)
		}
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(id, "node_added", state)
	writeJSON(w, http.StatusCreated, node)
}

// UpdateNode handles PATCH /sessions/{id}/nodes/{nodeID}.
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request, id string, nodeID string) {
	var body UpdateNodeRequest
	if err := s.decode(r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}

	var node domain.Node
	state, err := s.sessions.Update(r.Context(), id, func(ctx context.Context, ed *editor.Editor) error {
		n, ok := ed.Store().Node(nodeID)
		if !ok {
			return fmt.Errorf("update %q: %w", nodeID, domain.ErrNodeNotFound)
		}
		node = n
		var err error
		if body.Position != nil {
			if node, err = ed.MoveNode(ctx, nodeID, *body.Position); err != nil {
				return err
			}
		}
		for k, v := range body.Params {
			if node, err = ed.SetParam(ctx, nodeID, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(id, "node_updated", state)
	writeJSON(w, http.StatusOK, node)
}

// RemoveNode handles DELETE /sessions/{id}/nodes/{nodeID}.
func (s *Server) RemoveNode(w http.ResponseWriter, r *http.Request, id string, nodeID string) {
	state, err := s.sessions.Update(r.Context(), id, func(ctx context.Context, ed *editor.Editor) error {
		return ed.RemoveNode(ctx, nodeID)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(id, "node_removed", state)
	w.WriteHeader(http.StatusNoContent)
}

// Connect handles POST /sessions/{id}/edges.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request, id string) {
	var body ConnectRequest
	if err := s.decode(r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}

	var edge domain.Edge
	state, err := s.sessions.Update(r.Context(), id, func(ctx context.Context, ed *editor.Editor) error {
		var err error
		edge, err = ed.Connect(ctx, body.Source, body.Target)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(id, "edge_added", state)
	writeJSON(w, http.StatusCreated, edge)
}

// RemoveEdge handles DELETE /sessions/{id}/edges/{edgeID}.
func (s *Server) RemoveEdge(w http.ResponseWriter, r *http.Request, id string, edgeID string) {
	state, err := s.sessions.Update(r.Context(), id, func(ctx context.Context, ed *editor.Editor) error {
		return ed.RemoveEdge(ctx, edgeID)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(id, "edge_removed", state)
	w.WriteHeader(http.StatusNoContent)
}

// ResetSession handles POST /sessions/{id}/reset.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request, id string) {
	state, err := s.sessions.Update(r.Context(), id, func(ctx context.Context, ed *editor.Editor) error {
		ed.NewGraph()
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(id, "graph_reset", state)
	writeJSON(w, http.StatusOK, state)
}

// CompileSession handles GET /sessions/{id}/compile.
func (s *Server) CompileSession(w http.ResponseWriter, r *http.Request, id string) {
	req, err := s.sessions.Compile(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	payload, err := compiler.Marshal(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fp, err := compiler.Fingerprint(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(FingerprintHeader, fp)
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// SubmitSession handles POST /sessions/{id}/submit.
func (s *Server) SubmitSession(w http.ResponseWriter, r *http.Request, id string) {
	if s.submitter == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("training service not configured"))
		return
	}
	req, err := s.sessions.Compile(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.submitter.Submit(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("Session submitted", "session_id", id, "model_id", req.ModelID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}

// SessionMermaid handles GET /sessions/{id}/mermaid.
func (s *Server) SessionMermaid(w http.ResponseWriter, r *http.Request, id string) {
	state, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := graph.GenerateMermaid(state.Graph, &graph.GraphOverlay{ChainTail: state.ChainTail})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out)
}

// graphChanged is the SSE payload sent after each mutation.
type graphChanged struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	ChainTail string    `json:"chain_tail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) changed(id, typ string, state *domain.SessionState) {
	if state == nil || s.streams.Subscribers(id) == 0 {
		return
	}
	msg, err := json.Marshal(graphChanged{
		Type:      typ,
		SessionID: id,
		Nodes:     len(state.Graph.Nodes),
		Edges:     len(state.Graph.Edges),
		ChainTail: state.ChainTail,
		UpdatedAt: state.UpdatedAt,
	})
	if err != nil {
		s.logger.Error("SSE: encode change", "error", err)
		return
	}
	s.streams.Broadcast(id, string(msg))
}

// requestError marks client mistakes in the request itself.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// decode reads a JSON body into dest and validates it.
// With optional set an empty body is accepted.
func (s *Server) decode(r *http.Request, dest any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	if err := s.validate.Struct(dest); err != nil {
		return badRequest(err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound),
		errors.Is(err, domain.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSelfLoop), errors.Is(err, domain.ErrParallelEdge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrSubmissionFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	reqID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "status", status, "path", r.URL.Path, "request_id", reqID, "error", err)
	} else {
		s.logger.Debug("Request rejected", "status", status, "path", r.URL.Path, "request_id", reqID, "error", err)
	}
	writeError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
