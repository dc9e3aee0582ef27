// Package web serves the lineage map over HTTP for CI dashboards and
// local inspection.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/datablock-dev/dbt-ci/pkg/lineage"
	"github.com/datablock-dev/dbt-ci/pkg/logging"
	"github.com/datablock-dev/dbt-ci/pkg/pubsub"
)

// DiffResult is the last state-diff outcome exposed by the server.
type DiffResult struct {
	Project  string   `json:"project"`
	Selector string   `json:"selector"`
	Modified []string `json:"modified"`
}

// Server holds the current lineage map behind a lock and streams rebuild
// events to subscribers.
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher

	mu    sync.RWMutex
	graph *lineage.Graph
	diff  *DiffResult
}

// NewServer creates a lineage server with no graph loaded yet.
func NewServer() *Server {
	publisher := pubsub.NewSSEPublisher()

	// New subscribers only need the current state, not history.
	publisher.ConfigureTopic(pubsub.TopicGraph, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})
	publisher.ConfigureTopic(pubsub.TopicDiff, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

// SetGraph swaps in a freshly built lineage map and notifies subscribers.
func (s *Server) SetGraph(g *lineage.Graph) {
	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()

	_ = s.publisher.Publish(pubsub.TopicGraph, "rebuilt", pubsub.GraphStatus{
		State:     "ready",
		Message:   "lineage map rebuilt",
		Resources: g.Len(),
	})
}

// SetDiff stores the latest state-diff outcome and notifies subscribers.
func (s *Server) SetDiff(d DiffResult) {
	s.mu.Lock()
	s.diff = &d
	s.mu.Unlock()

	_ = s.publisher.Publish(pubsub.TopicDiff, "modified", pubsub.DiffStatus{
		Project:  d.Project,
		Selector: d.Selector,
		Modified: d.Modified,
	})
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/graph", s.handleGraph).Methods("GET")
	api.HandleFunc("/metadata", s.handleMetadata).Methods("GET")
	api.HandleFunc("/nodes/{name}", s.handleNode).Methods("GET")
	api.HandleFunc("/nodes/{name}/lineage", s.handleLineage).Methods("GET")
	api.HandleFunc("/modified", s.handleModified).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
}

// Start runs the HTTP server on the given port, blocking until it stops.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("lineage server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) currentGraph() *lineage.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g := s.currentGraph()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, "lineage map not built yet")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	g := s.currentGraph()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, "lineage map not built yet")
		return
	}
	writeJSON(w, http.StatusOK, g.Metadata)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	g := s.currentGraph()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, "lineage map not built yet")
		return
	}
	name := mux.Vars(r)["name"]
	node := g.GetNode(name)
	if node == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no resource named %q", name))
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	g := s.currentGraph()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, "lineage map not built yet")
		return
	}
	name := mux.Vars(r)["name"]
	node := g.GetNode(name)
	if node == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no resource named %q", name))
		return
	}

	switch direction := r.URL.Query().Get("direction"); direction {
	case "upstream":
		writeJSON(w, http.StatusOK, map[string]*lineage.Bundle{
			"direct":   node.Upstream,
			"indirect": node.IndirectUpstream,
		})
	case "downstream":
		writeJSON(w, http.StatusOK, map[string]*lineage.Bundle{
			"direct":   node.Downstream,
			"indirect": node.IndirectDownstream,
		})
	case "":
		writeJSON(w, http.StatusOK, map[string]*lineage.Bundle{
			"upstream":            node.Upstream,
			"downstream":          node.Downstream,
			"indirect_upstream":   node.IndirectUpstream,
			"indirect_downstream": node.IndirectDownstream,
		})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown direction %q", direction))
	}
}

func (s *Server) handleModified(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	diff := s.diff
	s.mu.RUnlock()

	if diff == nil {
		writeError(w, http.StatusNotFound, "no state diff has run yet")
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// handleEvents streams graph/diff events as Server-Sent Events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = pubsub.TopicGraph
	}
	if topic != pubsub.TopicGraph && topic != pubsub.TopicDiff {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown topic %q", topic))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
