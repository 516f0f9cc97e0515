package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
)

const listMethod = "/" + DependencyServiceName + "/ListDependencies"

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func withAuth(value string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", value))
}

func TestAuthInterceptor(t *testing.T) {
	for _, tc := range []struct {
		name   string
		token  string
		method string
		ctx    context.Context
		code   codes.Code // codes.OK means the call passes through
	}{
		{"Disabled", "", listMethod, context.Background(), codes.OK},
		{"HealthExempt", "secret", "/grpc.health.v1.Health/Check", context.Background(), codes.OK},
		{"MissingMetadata", "secret", listMethod, context.Background(), codes.Unauthenticated},
		{"MissingHeader", "secret", listMethod, metadata.NewIncomingContext(context.Background(), metadata.MD{}), codes.Unauthenticated},
		{"WrongToken", "secret", listMethod, withAuth("Bearer wrong"), codes.Unauthenticated},
		{"InvalidScheme", "secret", listMethod, withAuth("Basic secret"), codes.Unauthenticated},
		{"CorrectToken", "secret", listMethod, withAuth("Bearer secret"), codes.OK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			interceptor := AuthInterceptor(tc.token)
			resp, err := interceptor(tc.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if tc.code == codes.OK {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if resp != "ok" {
					t.Fatalf("expected 'ok', got %v", resp)
				}
				return
			}
			requireCode(t, err, tc.code)
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicky := func(context.Context, any) (any, error) { panic("boom") }
	_, err := RecoveryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: listMethod}, panicky)
	requireCode(t, err, codes.Internal)
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, tc := range []struct {
		name   string
		token  string
		path   string
		header string
		want   int
	}{
		{"Disabled", "", "/v1/tasks/task-1", "", http.StatusOK},
		{"NoHeader", "secret", "/v1/tasks/task-1", "", http.StatusUnauthorized},
		{"WrongToken", "secret", "/v1/tasks/task-1", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", "/v1/tasks/task-1", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", "/v1/tasks/task-1", "Bearer secret", http.StatusOK},
		{"HealthExempt", "secret", "/v1/health", "", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d; body: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks/x", nil))
	requireStatus(t, rec, http.StatusInternalServerError)
}
