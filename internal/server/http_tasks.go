package server

import (
	"net/http"
)

// handleCreateTask handles POST /v1/tasks.
func (s *TaskGraphServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in createTaskInput
	if err := decodeInput(r.Body, &in); err != nil {
		s.writeServerError(w, r, err)
		return
	}

	task, err := s.createTask(r.Context(), in)
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleGetTask handles GET /v1/tasks/{taskId}.
func (s *TaskGraphServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.getTask(r.Context(), r.PathValue("taskId"))
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask handles DELETE /v1/tasks/{taskId}.
func (s *TaskGraphServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteTask(r.Context(), r.PathValue("taskId"), r.URL.Query().Get("actor")); err != nil {
		s.writeServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetTaskStatus handles PATCH /v1/tasks/{taskId}/status.
func (s *TaskGraphServer) handleSetTaskStatus(w http.ResponseWriter, r *http.Request) {
	var in setStatusInput
	if err := decodeInput(r.Body, &in); err != nil {
		s.writeServerError(w, r, err)
		return
	}

	res, err := s.setTaskStatus(r.Context(), r.PathValue("taskId"), in)
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetStatusHistory handles GET /v1/tasks/{taskId}/history.
func (s *TaskGraphServer) handleGetStatusHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.statusHistory(r.Context(), r.PathValue("taskId"))
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handleListActivity handles GET /v1/tasks/{taskId}/activity.
func (s *TaskGraphServer) handleListActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	acts, err := s.listActivity(r.Context(), r.PathValue("taskId"), limit)
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": acts})
}
