package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Messages are
// google.protobuf.Struct in both directions, so no generated stubs are needed.
const ServiceName = "customerintel.v1.Dashboard"

const (
	MethodGetFilterOptions   = "GetFilterOptions"
	MethodGetOverview        = "GetOverview"
	MethodGetSegments        = "GetSegments"
	MethodGetRiskValue       = "GetRiskValue"
	MethodGetCustomers       = "GetCustomers"
	MethodGetCustomer        = "GetCustomer"
	MethodRefreshPredictions = "RefreshPredictions"
)

// DashboardServer is the server API for the Dashboard service.
type DashboardServer interface {
	GetFilterOptions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOverview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetSegments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetRiskValue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetCustomers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetCustomer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RefreshPredictions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(srv DashboardServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func methodHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DashboardServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DashboardServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// DashboardServiceDesc describes the Dashboard service for grpc.Server.RegisterService.
var DashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		methodHandler(MethodGetFilterOptions, DashboardServer.GetFilterOptions),
		methodHandler(MethodGetOverview, DashboardServer.GetOverview),
		methodHandler(MethodGetSegments, DashboardServer.GetSegments),
		methodHandler(MethodGetRiskValue, DashboardServer.GetRiskValue),
		methodHandler(MethodGetCustomers, DashboardServer.GetCustomers),
		methodHandler(MethodGetCustomer, DashboardServer.GetCustomer),
		methodHandler(MethodRefreshPredictions, DashboardServer.RefreshPredictions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: DescriptorPath,
}

// RegisterDashboardServer registers srv on s.
func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&DashboardServiceDesc, srv)
}

// DashboardClient calls the Dashboard service over an existing connection.
type DashboardClient struct {
	cc grpc.ClientConnInterface
}

func NewDashboardClient(cc grpc.ClientConnInterface) *DashboardClient {
	return &DashboardClient{cc: cc}
}

// Call invokes method with req and returns the response struct.
func (c *DashboardClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
