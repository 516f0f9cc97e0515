package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

const serviceName = "taskgraph.v1.DependencyService"

// GRPCClient implements TaskGraphClient using the gRPC transport.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Tasks ---

func (c *GRPCClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.call(ctx, "CreateTask", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *GRPCClient) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := c.call(ctx, "GetTask", map[string]any{"task_id": id}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *GRPCClient) DeleteTask(ctx context.Context, id, actor string) error {
	return c.call(ctx, "DeleteTask", map[string]any{"task_id": id, "actor": actor}, nil)
}

func (c *GRPCClient) SetTaskStatus(ctx context.Context, id string, req *SetStatusRequest) (*SetStatusResponse, error) {
	in := map[string]any{"task_id": id, "status": req.Status, "actor": req.Actor}
	var resp SetStatusResponse
	if err := c.call(ctx, "SetTaskStatus", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) GetStatusHistory(ctx context.Context, id string) ([]*model.StatusChange, error) {
	var resp struct {
		History []*model.StatusChange `json:"history"`
	}
	if err := c.call(ctx, "GetStatusHistory", map[string]any{"task_id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

func (c *GRPCClient) ListActivity(ctx context.Context, taskID string, limit int) ([]*model.Activity, error) {
	var resp struct {
		Activities []*model.Activity `json:"activities"`
	}
	if err := c.call(ctx, "ListActivity", map[string]any{"task_id": taskID, "limit": limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

// --- Dependencies ---

func (c *GRPCClient) ListDependencies(ctx context.Context, taskID string, req *ListDependenciesRequest) ([]*model.Dependency, error) {
	in := map[string]any{"task_id": taskID}
	if req != nil {
		in["type"] = req.Type
		in["direction"] = req.Direction
	}
	var resp struct {
		Dependencies []*model.Dependency `json:"dependencies"`
	}
	if err := c.call(ctx, "ListDependencies", in, &resp); err != nil {
		return nil, err
	}
	return resp.Dependencies, nil
}

func (c *GRPCClient) CreateDependency(ctx context.Context, taskID string, req *CreateDependencyRequest) (*model.Dependency, error) {
	in := map[string]any{
		"task_id":        taskID,
		"target_task_id": req.TargetTaskID,
		"type":           req.Type,
		"note":           req.Note,
		"created_by":     req.CreatedBy,
	}
	var dep model.Dependency
	if err := c.call(ctx, "CreateDependency", in, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *GRPCClient) GetDependency(ctx context.Context, taskID, id string) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.call(ctx, "GetDependency", map[string]any{"task_id": taskID, "id": id}, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *GRPCClient) UpdateDependency(ctx context.Context, taskID, id string, req *UpdateDependencyRequest) (*model.Dependency, error) {
	in := map[string]any{"task_id": taskID, "id": id, "actor": req.Actor}
	if req.Type != nil {
		in["type"] = *req.Type
	}
	if req.Note != nil {
		in["note"] = *req.Note
	}
	var dep model.Dependency
	if err := c.call(ctx, "UpdateDependency", in, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *GRPCClient) DeleteDependency(ctx context.Context, taskID, id, actor string) error {
	return c.call(ctx, "DeleteDependency", map[string]any{"task_id": taskID, "id": id, "actor": actor}, nil)
}

func (c *GRPCClient) GetSummary(ctx context.Context, taskID string) (*model.Summary, error) {
	var sum model.Summary
	if err := c.call(ctx, "GetSummary", map[string]any{"task_id": taskID}, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (c *GRPCClient) CanClose(ctx context.Context, taskID string) (*model.ClosureCheck, error) {
	var check model.ClosureCheck
	if err := c.call(ctx, "CanClose", map[string]any{"task_id": taskID}, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(c.authed(ctx), &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return "", err
	}
	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		return "ok", nil
	}
	return strings.ToLower(resp.GetStatus().String()), nil
}

// --- internal helpers ---

func (c *GRPCClient) authed(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// call invokes a service method with req encoded as a Struct and decodes
// the Struct response into result. A nil result discards the response.
func (c *GRPCClient) call(ctx context.Context, method string, req any, result any) error {
	in, err := toStruct(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.authed(ctx), "/"+serviceName+"/"+method, in, out); err != nil {
		return statusToAPIError(err)
	}
	if result == nil {
		return nil
	}
	b, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if err := json.Unmarshal(b, result); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

var codeToHTTP = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.NotFound:           http.StatusNotFound,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.FailedPrecondition: http.StatusConflict,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unavailable:        http.StatusServiceUnavailable,
}

// statusToAPIError maps a gRPC status to the same APIError the HTTP client
// returns so callers can treat both transports alike.
func statusToAPIError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	code, ok := codeToHTTP[st.Code()]
	if !ok {
		return err
	}
	ae := &APIError{StatusCode: code, Message: st.Message()}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok {
			continue
		}
		ae.Reason = info.GetReason()
		if ids := info.GetMetadata()["blocking_task_ids"]; ids != "" {
			for _, id := range strings.Split(ids, ",") {
				ae.BlockingTasks = append(ae.BlockingTasks, model.BlockingTask{ID: id})
			}
		}
	}
	return ae
}
