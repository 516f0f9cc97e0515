package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// HTTPClient implements TaskGraphClient using the HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func taskPath(id string) string {
	return "/v1/tasks/" + url.PathEscape(id)
}

func depPath(taskID, id string) string {
	return taskPath(taskID) + "/dependencies/" + url.PathEscape(id)
}

func withActor(path, actor string) string {
	if actor == "" {
		return path
	}
	return path + "?" + url.Values{"actor": {actor}}.Encode()
}

// --- Tasks ---

func (c *HTTPClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) DeleteTask(ctx context.Context, id, actor string) error {
	return c.doJSON(ctx, http.MethodDelete, withActor(taskPath(id), actor), nil, nil)
}

func (c *HTTPClient) SetTaskStatus(ctx context.Context, id string, req *SetStatusRequest) (*SetStatusResponse, error) {
	var resp SetStatusResponse
	if err := c.doJSON(ctx, http.MethodPatch, taskPath(id)+"/status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetStatusHistory(ctx context.Context, id string) ([]*model.StatusChange, error) {
	var resp struct {
		History []*model.StatusChange `json:"history"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

func (c *HTTPClient) ListActivity(ctx context.Context, taskID string, limit int) ([]*model.Activity, error) {
	path := taskPath(taskID) + "/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Activities []*model.Activity `json:"activities"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

// --- Dependencies ---

func (c *HTTPClient) ListDependencies(ctx context.Context, taskID string, req *ListDependenciesRequest) ([]*model.Dependency, error) {
	q := url.Values{}
	if req != nil && req.Type != "" {
		q.Set("type", req.Type)
	}
	if req != nil && req.Direction != "" {
		q.Set("direction", req.Direction)
	}
	path := taskPath(taskID) + "/dependencies"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Dependencies []*model.Dependency `json:"dependencies"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Dependencies, nil
}

func (c *HTTPClient) CreateDependency(ctx context.Context, taskID string, req *CreateDependencyRequest) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.doJSON(ctx, http.MethodPost, taskPath(taskID)+"/dependencies", req, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) GetDependency(ctx context.Context, taskID, id string) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.doJSON(ctx, http.MethodGet, depPath(taskID, id), nil, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) UpdateDependency(ctx context.Context, taskID, id string, req *UpdateDependencyRequest) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.doJSON(ctx, http.MethodPut, depPath(taskID, id), req, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) DeleteDependency(ctx context.Context, taskID, id, actor string) error {
	return c.doJSON(ctx, http.MethodDelete, withActor(depPath(taskID, id), actor), nil, nil)
}

func (c *HTTPClient) GetSummary(ctx context.Context, taskID string) (*model.Summary, error) {
	var sum model.Summary
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/dependencies/summary", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (c *HTTPClient) CanClose(ctx context.Context, taskID string) (*model.ClosureCheck, error) {
	var check model.ClosureCheck
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/closure", nil, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error         string               `json:"error"`
			Reason        string               `json:"reason"`
			BlockingTasks []model.BlockingTask `json:"blocking_tasks"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{
				StatusCode:    resp.StatusCode,
				Message:       errResp.Error,
				Reason:        errResp.Reason,
				BlockingTasks: errResp.BlockingTasks,
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
