package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/modelgraph/pkg/adapters/memory"
	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubmitter struct {
	got  []domain.TrainingRequest
	resp []byte
	err  error
}

func (s *stubSubmitter) Submit(ctx context.Context, req domain.TrainingRequest) ([]byte, error) {
	s.got = append(s.got, req)
	return s.resp, s.err
}

func newTestServer(t *testing.T, opts ...Option) (*Server, http.Handler) {
	t.Helper()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin(), session.WithSeedGraph(true))
	opts = append([]Option{WithDefaultMetadata(domain.Metadata{ModelID: "demo-model", Dataset: "demo-dataset"})}, opts...)
	srv := NewServer(mgr, catalog.Builtin(), opts...)
	return srv, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, BasePath+path, nil)
	} else {
		req = httptest.NewRequest(method, BasePath+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler) domain.SessionState {
	t.Helper()
	w := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var state domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	return state
}

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "modelgraph API", doc.Info.Title)
	assert.NotNil(t, doc.Paths.Find("/sessions/{id}/nodes"))
}

func TestHealthAndInfo(t *testing.T) {
	_, h := newTestServer(t, WithVersion("1.2.3"))

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])
}

func TestCORS(t *testing.T) {
	_, h := newTestServer(t, WithCORSOrigin("http://localhost:3000"))
	req := httptest.NewRequest(http.MethodOptions, BasePath+"/sessions/abc", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPatch, w.Header().Get("Access-Control-Allow-Methods"))

	// Other origins get no grant.
	req = httptest.NewRequest(http.MethodGet, BasePath+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, BasePath+"/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, FingerprintHeader, w.Header().Get("Access-Control-Expose-Headers"))
}

func TestListCatalog(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/catalog", "")
	require.Equal(t, http.StatusOK, w.Code)

	var templates []domain.NodeTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &templates))
	assert.Len(t, templates, len(catalog.Builtin()))
}

func TestCatalogUnavailable(t *testing.T) {
	failing := catalog.NewCached(catalog.Func(func(context.Context) ([]domain.NodeTemplate, error) {
		return nil, domain.ErrCatalogUnavailable
	}))
	mgr := session.NewManager(memory.NewStore(), failing)
	h := NewHandler(mgr, failing)

	w := do(t, h, http.MethodGet, "/catalog", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	state := createSession(t, h)
	w = do(t, h, http.MethodPost, "/sessions/"+state.SessionID+"/nodes", `{"template":{"label":"A"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/"+state.SessionID, "")
	var after domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Empty(t, after.Graph.Nodes)
}

func TestSessionLifecycle(t *testing.T) {
	_, h := newTestServer(t)
	state := createSession(t, h)
	assert.NotEmpty(t, state.SessionID)
	assert.Equal(t, "demo-model", state.Metadata.ModelID)

	w := do(t, h, http.MethodGet, "/sessions", "")
	assert.Contains(t, w.Body.String(), state.SessionID)

	w = do(t, h, http.MethodPatch, "/sessions/"+state.SessionID, `{"model_id":"m2","dataset":"d2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"model_id":"m2"`)

	w = do(t, h, http.MethodDelete, "/sessions/"+state.SessionID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/"+state.SessionID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "session not found")

	w = do(t, h, http.MethodDelete, "/sessions/"+state.SessionID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddNode_ChainAcrossRequests(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	for _, label := range []string{"A", "B", "C"} {
		w := do(t, h, http.MethodPost, "/sessions/"+id+"/nodes", `{"template":{"label":"`+label+`"},"chain":true}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, h, http.MethodGet, "/sessions/"+id, "")
	var state domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	// Seed graph plus three chained drops.
	require.Len(t, state.Graph.Nodes, 6)
	require.Len(t, state.Graph.Edges, 4)
	assert.Equal(t, state.Graph.Nodes[5].ID, state.ChainTail)
	assert.Equal(t, state.Graph.Nodes[3].ID, state.Graph.Edges[2].Source)
}

func TestAddNode_FromCatalogIndex(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	w := do(t, h, http.MethodPost, "/sessions/"+id+"/nodes", `{"template_index":1,"position":{"x":10,"y":20}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var n domain.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
	assert.Equal(t, domain.CatalogKind("dense"), n.Kind)
	assert.Equal(t, domain.Position{X: 10, Y: 20}, n.Position)

	w = do(t, h, http.MethodPost, "/sessions/"+id+"/nodes", `{"template_index":42}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddNode_BadRequests(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	cases := map[string]string{
		"malformed":      `{`,
		"neither":        `{"chain":true}`,
		"both":           `{"template_index":0,"template":{"label":"A"}}`,
		"negative index": `{"template_index":-1}`,
		"template label": `{"template":{"type":"dense"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sessions/"+id+"/nodes", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w := do(t, h, http.MethodPost, "/sessions/ghost/nodes", `{"template_index":0}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateNode(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	w := do(t, h, http.MethodPatch, "/sessions/"+id+"/nodes/1", `{"position":{"x":1,"y":2},"params":{"units":8}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var n domain.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
	assert.Equal(t, domain.Position{X: 1, Y: 2}, n.Position)
	assert.Equal(t, 8.0, n.Params["units"])

	w = do(t, h, http.MethodPatch, "/sessions/"+id+"/nodes/1", `{"params":{"units":null}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
	assert.NotContains(t, n.Params, "units")

	w = do(t, h, http.MethodPatch, "/sessions/"+id+"/nodes/99", `{"position":{"x":1,"y":2}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEdgesAndRemoval(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	w := do(t, h, http.MethodPost, "/sessions/"+id+"/edges", `{"source":"1","target":"3"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e domain.Edge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "1", e.Source)

	w = do(t, h, http.MethodPost, "/sessions/"+id+"/edges", `{"source":"1","target":"nope"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/sessions/"+id+"/edges", `{"source":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/sessions/"+id+"/edges/"+e.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodDelete, "/sessions/"+id+"/edges/"+e.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/sessions/"+id+"/nodes/2", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/"+id, "")
	var state domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Len(t, state.Graph.Nodes, 2)
	assert.Empty(t, state.Graph.Edges)
}

func TestReset(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	w := do(t, h, http.MethodPost, "/sessions/"+id+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Empty(t, state.Graph.Nodes)
	assert.Empty(t, state.ChainTail)
}

func TestCompileSession(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	w := do(t, h, http.MethodGet, "/sessions/"+id+"/compile", "")
	require.Equal(t, http.StatusOK, w.Code)

	var req domain.TrainingRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &req))
	assert.Equal(t, "demo-model", req.ModelID)
	assert.Len(t, req.Graph.Nodes, 3)
	assert.Len(t, req.Graph.Edges, 2)

	fp, err := compiler.Fingerprint(req)
	require.NoError(t, err)
	assert.Equal(t, fp, w.Header().Get(FingerprintHeader))

	again := do(t, h, http.MethodGet, "/sessions/"+id+"/compile", "")
	assert.Equal(t, w.Body.String(), again.Body.String())
}

func TestSubmitSession(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, h := newTestServer(t)
		id := createSession(t, h).SessionID
		w := do(t, h, http.MethodPost, "/sessions/"+id+"/submit", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("passthrough", func(t *testing.T) {
		sub := &stubSubmitter{resp: []byte(`{"status":"queued"}`)}
		_, h := newTestServer(t, WithSubmitter(sub))
		id := createSession(t, h).SessionID

		w := do(t, h, http.MethodPost, "/sessions/"+id+"/submit", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"status":"queued"}`, w.Body.String())
		require.Len(t, sub.got, 1)
		assert.Equal(t, "demo-dataset", sub.got[0].Dataset)
	})

	t.Run("rejected", func(t *testing.T) {
		sub := &stubSubmitter{err: &domain.SubmissionError{StatusCode: 500}}
		_, h := newTestServer(t, WithSubmitter(sub))
		id := createSession(t, h).SessionID

		w := do(t, h, http.MethodPost, "/sessions/"+id+"/submit", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestSessionMermaid(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).SessionID

	w := do(t, h, http.MethodGet, "/sessions/"+id+"/mermaid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph LR"))
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok_total 1"))
	})
	_, h := newTestServer(t, WithMetrics(metrics))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "ok_total 1", w.Body.String())
}

func TestSubscribeSessionEvents(t *testing.T) {
	srv, h := newTestServer(t)
	id := createSession(t, h).SessionID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest(http.MethodGet, BasePath+"/sessions/"+id+"/events", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(wSub, reqSub)
	}()

	require.Eventually(t, func() bool {
		return srv.Streams().Subscribers(id) == 1
	}, time.Second, 10*time.Millisecond)

	w := do(t, h, http.MethodPost, "/sessions/"+id+"/nodes", `{"template":{"label":"X"},"chain":true}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// Give the subscriber a moment to drain the buffered message.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	out := wSub.Body.String()
	assert.Contains(t, out, "event: ping")
	assert.Contains(t, out, `"type":"node_added"`)
	assert.Contains(t, out, `"nodes":4`)
	assert.Zero(t, srv.Streams().Subscribers(id))
}

func TestSubscribeSessionEvents_UnknownSession(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/sessions/ghost/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
