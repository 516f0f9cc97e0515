package server

import (
	"net/http"
)

// handleListDependencies handles GET /v1/tasks/{taskId}/dependencies.
func (s *TaskGraphServer) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.listDependencies(r.Context(), r.PathValue("taskId"), q.Get("type"), q.Get("direction"))
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dependencies": list})
}

// handleCreateDependency handles POST /v1/tasks/{taskId}/dependencies.
func (s *TaskGraphServer) handleCreateDependency(w http.ResponseWriter, r *http.Request) {
	var in createDependencyInput
	if err := decodeInput(r.Body, &in); err != nil {
		s.writeServerError(w, r, err)
		return
	}

	dep, err := s.createDependency(r.Context(), r.PathValue("taskId"), in)
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

// handleGetSummary handles GET /v1/tasks/{taskId}/dependencies/summary.
func (s *TaskGraphServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary(r.Context(), r.PathValue("taskId"))
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleGetDependency handles GET /v1/tasks/{taskId}/dependencies/{id}.
func (s *TaskGraphServer) handleGetDependency(w http.ResponseWriter, r *http.Request) {
	dep, err := s.getDependency(r.Context(), r.PathValue("taskId"), r.PathValue("id"))
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

// handleUpdateDependency handles PUT /v1/tasks/{taskId}/dependencies/{id}.
func (s *TaskGraphServer) handleUpdateDependency(w http.ResponseWriter, r *http.Request) {
	var in updateDependencyInput
	if err := decodeInput(r.Body, &in); err != nil {
		s.writeServerError(w, r, err)
		return
	}

	dep, err := s.updateDependency(r.Context(), r.PathValue("taskId"), r.PathValue("id"), in)
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

// handleDeleteDependency handles DELETE /v1/tasks/{taskId}/dependencies/{id}.
func (s *TaskGraphServer) handleDeleteDependency(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deleteDependency(r.Context(), r.PathValue("taskId"), id, r.URL.Query().Get("actor")); err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleCanClose handles GET /v1/tasks/{taskId}/closure.
func (s *TaskGraphServer) handleCanClose(w http.ResponseWriter, r *http.Request) {
	check, err := s.closure(r.Context(), r.PathValue("taskId"))
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
