// Package testing provides an in-memory Simvue server for tests.
package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Request records one call made to the fake server.
type Request struct {
	Method    string
	Path      string
	RequestID string
}

// MetricSet mirrors the wire format. Numeric values decode as json.Number
// so tests can tell 3 from 3.0.
type MetricSet struct {
	Values    map[string]any `json:"values"`
	Time      json.Number    `json:"time"`
	Timestamp string         `json:"timestamp"`
	Step      int            `json:"step"`
}

// Event mirrors the wire format of an event.
type Event struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// FakeServer is an httptest server speaking enough of the Simvue API for the CLI.
type FakeServer struct {
	mu     sync.Mutex
	server *httptest.Server

	// Token, when set, must be presented as a bearer token.
	Token         string
	ServerVersion string
	Username      string
	Tenant        string

	// FailMetricsAfter accepts this many metric posts, then answers MetricsFailStatus.
	// Negative never fails.
	FailMetricsAfter  int
	MetricsFailStatus int
	// FailNext makes the next n requests answer 503.
	FailNext int

	Runs     map[string]map[string]any
	Metrics  map[string][]MetricSet
	Events   map[string][]Event
	Folders  map[string]bool
	Aborts   map[string]string
	Requests []Request

	nextID int
}

// NewFakeServer starts a server. Callers must Close it.
func NewFakeServer() *FakeServer {
	f := &FakeServer{
		ServerVersion:     "1.2.0",
		Username:          "jdoe",
		Tenant:            "research",
		FailMetricsAfter:  -1,
		MetricsFailStatus: http.StatusInternalServerError,
		Runs:              make(map[string]map[string]any),
		Metrics:           make(map[string][]MetricSet),
		Events:            make(map[string][]Event),
		Folders:           make(map[string]bool),
		Aborts:            make(map[string]string),
	}
	f.server = httptest.NewServer(f.router())
	return f
}

// URL returns the base URL to configure a client with.
func (f *FakeServer) URL() string {
	return f.server.URL
}

// Close shuts the server down.
func (f *FakeServer) Close() {
	f.server.Close()
}

// AddRun seeds a run with the given status and returns its id.
func (f *FakeServer) AddRun(name, status string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.Runs[id] = map[string]any{"id": id, "name": name, "status": status, "folder": "/", "created": "2026-10-17T12:00:00"}
	return id
}

// RunStatus returns the stored status of a run.
func (f *FakeServer) RunStatus(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.Runs[id]; ok {
		s, _ := r["status"].(string)
		return s
	}
	return ""
}

// MetricSets returns a copy of the metrics received for a run.
func (f *FakeServer) MetricSets(runID string) []MetricSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MetricSet(nil), f.Metrics[runID]...)
}

// AddMetrics seeds metric sets as if a client had already sent them.
func (f *FakeServer) AddMetrics(runID string, sets ...MetricSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Metrics[runID] = append(f.Metrics[runID], sets...)
}

// RunIDs returns ids of every stored run.
func (f *FakeServer) RunIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.Runs))
	for id := range f.Runs {
		ids = append(ids, id)
	}
	return ids
}

// RunField returns one stored field of a run, or nil.
func (f *FakeServer) RunField(id, key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Runs[id][key]
}

// EventMessages returns the messages logged on a run, in order.
func (f *FakeServer) EventMessages(runID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.Events[runID] {
		out = append(out, e.Message)
	}
	return out
}

// AbortReason returns the reason a run was aborted with.
func (f *FakeServer) AbortReason(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Aborts[id]
}

// HasFolder reports whether a folder was created.
func (f *FakeServer) HasFolder(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Folders[path]
}

// RequestCount returns how many requests reached the server.
func (f *FakeServer) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

func (f *FakeServer) newID() string {
	f.nextID++
	return fmt.Sprintf("run-%04d", f.nextID)
}

func (f *FakeServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)
	r.Use(f.auth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", f.handleVersion)
		r.Get("/whoami", f.handleWhoAmI)
		r.Post("/folders", f.handleCreateFolder)
		r.Post("/metrics", f.handleMetrics)
		r.Post("/events", f.handleEvents)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", f.handleListRuns)
			r.Post("/", f.handleCreateRun)
			r.Get("/{id}", f.handleGetRun)
			r.Get("/{id}/metrics", f.handleGetMetrics)
			r.Put("/{id}", f.handleUpdateRun)
			r.Put("/{id}/abort", f.handleAbortRun)
			r.Delete("/{id}", f.handleDeleteRun)
		})
	})
	return r
}

func (f *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.Requests = append(f.Requests, Request{
			Method:    req.Method,
			Path:      req.URL.Path,
			RequestID: req.Header.Get("X-Request-ID"),
		})
		fail := f.FailNext > 0
		if fail {
			f.FailNext--
		}
		f.mu.Unlock()

		if fail {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (f *FakeServer) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if f.Token != "" && req.Header.Get("Authorization") != "Bearer "+f.Token {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": f.ServerVersion})
}

func (f *FakeServer) handleWhoAmI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"username": f.Username, "tenant": f.Tenant})
}

func (f *FakeServer) handleCreateFolder(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || !strings.HasPrefix(body.Path, "/") {
		http.Error(w, "invalid folder", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Folders[body.Path] {
		http.Error(w, "folder exists", http.StatusConflict)
		return
	}
	f.Folders[body.Path] = true
	writeJSON(w, http.StatusOK, map[string]string{"id": "folder-" + body.Path})
}

func (f *FakeServer) handleCreateRun(w http.ResponseWriter, req *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	name, _ := body["name"].(string)
	if name == "" {
		name = "generated-" + id
	}
	body["id"] = id
	body["name"] = name
	body["created"] = "2026-10-17T12:00:00"
	f.Runs[id] = body
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "name": name})
}

func (f *FakeServer) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := make([]map[string]any, 0, len(f.Runs))
	for i := 1; i <= f.nextID; i++ {
		if r, ok := f.Runs[fmt.Sprintf("run-%04d", i)]; ok {
			data = append(data, r)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "count": len(data)})
}

func (f *FakeServer) handleGetRun(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.Runs[chi.URLParam(req, "id")]
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, r)
}

func (f *FakeServer) handleUpdateRun(w http.ResponseWriter, req *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.Runs[chi.URLParam(req, "id")]
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	for k, v := range body {
		r[k] = v
	}
	writeJSON(w, http.StatusOK, r)
}

func (f *FakeServer) handleAbortRun(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	id := chi.URLParam(req, "id")
	r, ok := f.Runs[id]
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	r["status"] = "terminated"
	f.Aborts[id] = body.Reason
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (f *FakeServer) handleDeleteRun(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := chi.URLParam(req, "id")
	if _, ok := f.Runs[id]; !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	delete(f.Runs, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeServer) handleMetrics(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Run     string      `json:"run"`
		Metrics []MetricSet `json:"metrics"`
	}
	dec := json.NewDecoder(req.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Runs[body.Run]; !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if f.FailMetricsAfter >= 0 && f.metricPosts() >= f.FailMetricsAfter {
		http.Error(w, "metrics rejected", f.MetricsFailStatus)
		return
	}
	f.Metrics[body.Run] = append(f.Metrics[body.Run], body.Metrics...)
	writeJSON(w, http.StatusOK, map[string]any{"accepted": len(body.Metrics)})
}

func (f *FakeServer) handleGetMetrics(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := chi.URLParam(req, "id")
	if _, ok := f.Runs[id]; !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	data := append([]MetricSet{}, f.Metrics[id]...)
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "count": len(data)})
}

func (f *FakeServer) metricPosts() int {
	n := 0
	for _, sets := range f.Metrics {
		n += len(sets)
	}
	return n
}

func (f *FakeServer) handleEvents(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Run    string  `json:"run"`
		Events []Event `json:"events"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Runs[body.Run]; !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	f.Events[body.Run] = append(f.Events[body.Run], body.Events...)
	writeJSON(w, http.StatusOK, map[string]any{"accepted": len(body.Events)})
}
