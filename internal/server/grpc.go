package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rendezvous.v1.Scheduler"

// SchedulerServer is the gRPC surface. Every method takes and returns a
// google.protobuf.Struct carrying the same JSON shapes as the HTTP API.
type SchedulerServer interface {
	CreateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProfiles(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEventLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ SchedulerServer = (*Server)(nil)

type schedulerMethod func(SchedulerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// Methods lists the RPC names in registration order.
var Methods = []string{
	"CreateProfile",
	"ListProfiles",
	"UpdateProfile",
	"CreateEvent",
	"UpdateEvent",
	"GetEvent",
	"ListEvents",
	"ListEventLogs",
}

var schedulerMethods = map[string]schedulerMethod{
	"CreateProfile": SchedulerServer.CreateProfile,
	"ListProfiles":  SchedulerServer.ListProfiles,
	"UpdateProfile": SchedulerServer.UpdateProfile,
	"CreateEvent":   SchedulerServer.CreateEvent,
	"UpdateEvent":   SchedulerServer.UpdateEvent,
	"GetEvent":      SchedulerServer.GetEvent,
	"ListEvents":    SchedulerServer.ListEvents,
	"ListEventLogs": SchedulerServer.ListEventLogs,
}

func unaryHandler(name string, call schedulerMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*SchedulerServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "rendezvous/v1/scheduler.proto",
	}
	for _, name := range Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name, schedulerMethods[name]),
		})
	}
	return desc
}

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the scheduler, health and reflection services, and returns it ready to
// serve.
func NewGRPCServer(s *Server) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.unaryInterceptors()...),
	)

	srv.RegisterService(serviceDesc(), s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}
