package http

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// BasePath prefixes every API route.
const BasePath = "/api/v1"

//go:embed openapi.yaml
var openapiSpec []byte

var (
	swaggerOnce sync.Once
	swagger     *openapi3.T
	swaggerErr  error
)

// rawSpec returns the embedded OpenAPI document.
func rawSpec() ([]byte, error) {
	return openapiSpec, nil
}

// GetSwagger parses and validates the embedded OpenAPI document once.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(openapiSpec)
		if err != nil {
			swaggerErr = fmt.Errorf("error loading OpenAPI spec: %w", err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			swaggerErr = fmt.Errorf("invalid OpenAPI spec: %w", err)
			return
		}
		swagger = doc
	})
	return swagger, swaggerErr
}

// CreateSessionRequest is the optional body of POST /sessions and PATCH /sessions/{id}.
type CreateSessionRequest = domain.Metadata

// AddNodeRequest is the body of POST /sessions/{id}/nodes.
// Exactly one of TemplateIndex and Template must be set.
type AddNodeRequest struct {
	TemplateIndex *int                 `json:"template_index" validate:"omitempty,gte=0"`
	Template      *domain.NodeTemplate `json:"template" validate:"omitempty"`
	Position      domain.Position      `json:"position"`
	Chain         bool                 `json:"chain"`
}

// UpdateNodeRequest is the body of PATCH /sessions/{id}/nodes/{nodeID}.
type UpdateNodeRequest struct {
	Position *domain.Position `json:"position"`
	Params   map[string]any   `json:"params"`
}

// ConnectRequest is the body of POST /sessions/{id}/edges.
type ConnectRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	GetHealth(w http.ResponseWriter, r *http.Request)
	GetInfo(w http.ResponseWriter, r *http.Request)
	ListCatalog(w http.ResponseWriter, r *http.Request)
	RefreshCatalog(w http.ResponseWriter, r *http.Request)
	ListSessions(w http.ResponseWriter, r *http.Request)
	CreateSession(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request, id string)
	UpdateSessionMetadata(w http.ResponseWriter, r *http.Request, id string)
	DeleteSession(w http.ResponseWriter, r *http.Request, id string)
	AddNode(w http.ResponseWriter, r *http.Request, id string)
	UpdateNode(w http.ResponseWriter, r *http.Request, id string, nodeID string)
	RemoveNode(w http.ResponseWriter, r *http.Request, id string, nodeID string)
	Connect(w http.ResponseWriter, r *http.Request, id string)
	RemoveEdge(w http.ResponseWriter, r *http.Request, id string, edgeID string)
	ResetSession(w http.ResponseWriter, r *http.Request, id string)
	CompileSession(w http.ResponseWriter, r *http.Request, id string)
	SubmitSession(w http.ResponseWriter, r *http.Request, id string)
	SessionMermaid(w http.ResponseWriter, r *http.Request, id string)
	SubscribeSessionEvents(w http.ResponseWriter, r *http.Request, id string)
}

// HandlerFromMux registers the API routes of si on r under BasePath.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	r.Route(BasePath, func(r chi.Router) {
		r.Get("/health", si.GetHealth)
		r.Get("/info", si.GetInfo)
		r.Get("/catalog", si.ListCatalog)
		r.Post("/catalog/refresh", si.RefreshCatalog)
		r.Get("/sessions", si.ListSessions)
		r.Post("/sessions", si.CreateSession)

		r.Get("/sessions/{id}", withID(si.GetSession))
		r.Patch("/sessions/{id}", withID(si.UpdateSessionMetadata))
		r.Delete("/sessions/{id}", withID(si.DeleteSession))
		r.Post("/sessions/{id}/nodes", withID(si.AddNode))
		r.Patch("/sessions/{id}/nodes/{nodeID}", withIDs("nodeID", si.UpdateNode))
		r.Delete("/sessions/{id}/nodes/{nodeID}", withIDs("nodeID", si.RemoveNode))
		r.Post("/sessions/{id}/edges", withID(si.Connect))
		r.Delete("/sessions/{id}/edges/{edgeID}", withIDs("edgeID", si.RemoveEdge))
		r.Post("/sessions/{id}/reset", withID(si.ResetSession))
		r.Get("/sessions/{id}/compile", withID(si.CompileSession))
		r.Post("/sessions/{id}/submit", withID(si.SubmitSession))
		r.Get("/sessions/{id}/mermaid", withID(si.SessionMermaid))
		r.Get("/sessions/{id}/events", withID(si.SubscribeSessionEvents))
	})
	return r
}

func withID(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		if err := bindPathParam(r, "id", &id); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h(w, r, id)
	}
}

func withIDs(second string, h func(http.ResponseWriter, *http.Request, string, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id, other string
		if err := bindPathParam(r, "id", &id); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := bindPathParam(r, second, &other); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h(w, r, id, other)
	}
}

func bindPathParam(r *http.Request, name string, dest *string) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return nil
}
