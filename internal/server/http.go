package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *TaskGraphServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /v1/tasks/{taskId}", s.handleGetTask)
	mux.HandleFunc("DELETE /v1/tasks/{taskId}", s.handleDeleteTask)
	mux.HandleFunc("PATCH /v1/tasks/{taskId}/status", s.handleSetTaskStatus)
	mux.HandleFunc("GET /v1/tasks/{taskId}/history", s.handleGetStatusHistory)
	mux.HandleFunc("GET /v1/tasks/{taskId}/activity", s.handleListActivity)
	mux.HandleFunc("GET /v1/tasks/{taskId}/closure", s.handleCanClose)
	mux.HandleFunc("GET /v1/tasks/{taskId}/dependencies", s.handleListDependencies)
	mux.HandleFunc("POST /v1/tasks/{taskId}/dependencies", s.handleCreateDependency)
	mux.HandleFunc("GET /v1/tasks/{taskId}/dependencies/summary", s.handleGetSummary)
	mux.HandleFunc("GET /v1/tasks/{taskId}/dependencies/{id}", s.handleGetDependency)
	mux.HandleFunc("PUT /v1/tasks/{taskId}/dependencies/{id}", s.handleUpdateDependency)
	mux.HandleFunc("DELETE /v1/tasks/{taskId}/dependencies/{id}", s.handleDeleteDependency)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RecoveryMiddleware(AuthMiddleware(authToken, mux))
}

// handleHealth handles GET /v1/health.
func (s *TaskGraphServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, inputError(key + " must be a non-negative integer")
	}
	return n, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
