package server

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/taskgraph/internal/deps"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// errorDomain is the ErrorInfo domain attached to gRPC errors.
const errorDomain = "taskgraph"

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// apiError is the transport-neutral form of a failed operation.
type apiError struct {
	HTTPStatus int
	Code       codes.Code
	Message    string
	Reason     string
	Blocking   []model.BlockingTask
	cause      error
}

// classify maps a domain error onto the HTTP and gRPC status spaces.
func classify(err error) *apiError {
	var (
		ie      inputError
		ve      *model.ValidationError
		rel     *deps.RelationshipError
		nf      *deps.NotFoundError
		closure *deps.ClosureError
	)
	switch {
	case errors.As(err, &ie):
		return &apiError{HTTPStatus: http.StatusBadRequest, Code: codes.InvalidArgument, Message: ie.Error()}
	case errors.As(err, &ve):
		return &apiError{HTTPStatus: http.StatusBadRequest, Code: codes.InvalidArgument, Message: ve.Error()}
	case errors.As(err, &rel):
		return &apiError{HTTPStatus: http.StatusBadRequest, Code: codes.InvalidArgument, Message: rel.Message, Reason: string(rel.Reason)}
	case errors.As(err, &nf):
		return &apiError{HTTPStatus: http.StatusNotFound, Code: codes.NotFound, Message: nf.Error()}
	case errors.Is(err, sql.ErrNoRows):
		return &apiError{HTTPStatus: http.StatusNotFound, Code: codes.NotFound, Message: "not found"}
	case errors.Is(err, deps.ErrForbidden):
		return &apiError{HTTPStatus: http.StatusForbidden, Code: codes.PermissionDenied, Message: deps.ErrForbidden.Error()}
	case errors.As(err, &closure):
		return &apiError{
			HTTPStatus: http.StatusConflict,
			Code:       codes.FailedPrecondition,
			Message:    closure.Error(),
			Reason:     "closure_blocked",
			Blocking:   closure.Blocking,
		}
	}
	return &apiError{
		HTTPStatus: http.StatusInternalServerError,
		Code:       codes.Internal,
		Message:    "internal server error",
		cause:      err,
	}
}

// reportError logs an unexpected failure and forwards it to Sentry. Without
// a configured client the capture is a no-op.
func reportError(op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("op", op)
		sentry.CaptureException(err)
	})
}

// writeServerError renders err as a JSON error body.
func (s *TaskGraphServer) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	body := map[string]any{"error": ae.Message}
	if ae.Reason != "" {
		body["reason"] = ae.Reason
	}
	if ae.Blocking != nil {
		body["blocking_tasks"] = ae.Blocking
	}
	if ae.cause != nil {
		reportError(r.Method+" "+r.URL.Path, ae.cause)
		if s.Development {
			body["detail"] = ae.cause.Error()
		}
	}
	writeJSON(w, ae.HTTPStatus, body)
}

// grpcError converts err into a status error carrying an ErrorInfo detail
// when a reason is known.
func (s *TaskGraphServer) grpcError(method string, err error) error {
	ae := classify(err)
	msg := ae.Message
	if ae.cause != nil {
		reportError(method, ae.cause)
		if s.Development {
			msg += ": " + ae.cause.Error()
		}
	}
	st := status.New(ae.Code, msg)
	if ae.Reason == "" {
		return st.Err()
	}
	info := &errdetails.ErrorInfo{Reason: ae.Reason, Domain: errorDomain}
	if len(ae.Blocking) > 0 {
		ids := make([]string, len(ae.Blocking))
		for i, b := range ae.Blocking {
			ids[i] = b.ID
		}
		info.Metadata = map[string]string{"blocking_task_ids": strings.Join(ids, ",")}
	}
	detailed, derr := st.WithDetails(info)
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// taskNotFound converts a missing-row error from a task lookup.
func taskNotFound(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &deps.NotFoundError{Entity: "task", ID: id}
	}
	return err
}
