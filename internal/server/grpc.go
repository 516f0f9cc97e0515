package server

import (
	"context"
	"encoding/json"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// DependencyServiceName is the fully qualified gRPC service name. Requests
// and responses are google.protobuf.Struct values carrying the same JSON
// shapes as the HTTP API.
const DependencyServiceName = "taskgraph.v1.DependencyService"

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the dependency service, the health service and reflection.
func NewGRPCServer(tg *TaskGraphServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	desc := dependencyServiceDesc()
	srv.RegisterService(&desc, tg)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(DependencyServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}

type rpcMethod func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error)

type taskRequest struct {
	TaskID string `json:"task_id"`
	Actor  string `json:"actor"`
}

type dependencyRequest struct {
	TaskID string `json:"task_id"`
	ID     string `json:"id"`
	Actor  string `json:"actor"`
}

var rpcMethods = map[string]rpcMethod{
	"ListDependencies": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		var in struct {
			TaskID    string `json:"task_id"`
			Type      string `json:"type"`
			Direction string `json:"direction"`
		}
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		if in.TaskID == "" {
			return nil, inputError("task_id is required")
		}
		list, err := s.listDependencies(ctx, in.TaskID, in.Type, in.Direction)
		if err != nil {
			return nil, err
		}
		return map[string]any{"dependencies": list}, nil
	},
	"GetSummary": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		in, err := decodeTaskRequest(req)
		if err != nil {
			return nil, err
		}
		return s.summary(ctx, in.TaskID)
	},
	"CreateDependency": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		var in struct {
			TaskID string `json:"task_id"`
			createDependencyInput
		}
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		if in.TaskID == "" {
			return nil, inputError("task_id is required")
		}
		return s.createDependency(ctx, in.TaskID, in.createDependencyInput)
	},
	"GetDependency": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		in, err := decodeDependencyRequest(req)
		if err != nil {
			return nil, err
		}
		return s.getDependency(ctx, in.TaskID, in.ID)
	},
	"UpdateDependency": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		var in struct {
			TaskID string `json:"task_id"`
			ID     string `json:"id"`
			updateDependencyInput
		}
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		if in.TaskID == "" || in.ID == "" {
			return nil, inputError("task_id and id are required")
		}
		return s.updateDependency(ctx, in.TaskID, in.ID, in.updateDependencyInput)
	},
	"DeleteDependency": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		in, err := decodeDependencyRequest(req)
		if err != nil {
			return nil, err
		}
		if err := s.deleteDependency(ctx, in.TaskID, in.ID, in.Actor); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": in.ID}, nil
	},
	"CanClose": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		in, err := decodeTaskRequest(req)
		if err != nil {
			return nil, err
		}
		return s.closure(ctx, in.TaskID)
	},
	"CreateTask": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		var in createTaskInput
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		return s.createTask(ctx, in)
	},
	"GetTask": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		in, err := decodeTaskRequest(req)
		if err != nil {
			return nil, err
		}
		return s.getTask(ctx, in.TaskID)
	},
	"DeleteTask": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		in, err := decodeTaskRequest(req)
		if err != nil {
			return nil, err
		}
		if err := s.deleteTask(ctx, in.TaskID, in.Actor); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": in.TaskID}, nil
	},
	"GetStatusHistory": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		in, err := decodeTaskRequest(req)
		if err != nil {
			return nil, err
		}
		history, err := s.statusHistory(ctx, in.TaskID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"history": history}, nil
	},
	"ListActivity": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		var in struct {
			TaskID string `json:"task_id"`
			Limit  int    `json:"limit"`
		}
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		if in.TaskID == "" {
			return nil, inputError("task_id is required")
		}
		acts, err := s.listActivity(ctx, in.TaskID, in.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"activities": acts}, nil
	},
	"SetTaskStatus": func(s *TaskGraphServer, ctx context.Context, req *structpb.Struct) (any, error) {
		var in struct {
			TaskID string `json:"task_id"`
			setStatusInput
		}
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		if in.TaskID == "" {
			return nil, inputError("task_id is required")
		}
		return s.setTaskStatus(ctx, in.TaskID, in.setStatusInput)
	},
}

// dependencyServiceDesc builds the hand-registered service description.
func dependencyServiceDesc() grpc.ServiceDesc {
	names := make([]string, 0, len(rpcMethods))
	for name := range rpcMethods {
		names = append(names, name)
	}
	sort.Strings(names)

	desc := grpc.ServiceDesc{
		ServiceName: DependencyServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "taskgraph/v1/dependency.proto",
	}
	for _, name := range names {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name, rpcMethods[name]),
		})
	}
	return desc
}

func unaryHandler(name string, call rpcMethod) grpc.MethodHandler {
	fullMethod := "/" + DependencyServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*TaskGraphServer)
		handler := func(ctx context.Context, req any) (any, error) {
			out, err := call(s, ctx, req.(*structpb.Struct))
			if err != nil {
				return nil, s.grpcError(fullMethod, err)
			}
			resp, err := encodeStruct(out)
			if err != nil {
				return nil, s.grpcError(fullMethod, err)
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

func decodeTaskRequest(req *structpb.Struct) (*taskRequest, error) {
	var in taskRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	if in.TaskID == "" {
		return nil, inputError("task_id is required")
	}
	return &in, nil
}

func decodeDependencyRequest(req *structpb.Struct) (*dependencyRequest, error) {
	var in dependencyRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	if in.TaskID == "" || in.ID == "" {
		return nil, inputError("task_id and id are required")
	}
	return &in, nil
}

// decodeStruct copies a Struct into dst through its JSON form.
func decodeStruct(req *structpb.Struct, dst any) error {
	b, err := protojson.Marshal(req)
	if err != nil {
		return inputError("invalid request: " + err.Error())
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return inputError("invalid request: " + err.Error())
	}
	return nil
}

// encodeStruct converts a JSON-serializable value into a Struct.
func encodeStruct(v any) (*structpb.Struct, error) {
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
