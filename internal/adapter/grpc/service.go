package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "budgetpool.v1.BudgetService"

const (
	PurchaseFullMethodName         = "/" + ServiceName + "/Purchase"
	ListBudgetsFullMethodName      = "/" + ServiceName + "/ListBudgets"
	ListTransactionsFullMethodName = "/" + ServiceName + "/ListTransactions"
	ListUsersFullMethodName        = "/" + ServiceName + "/ListUsers"
	GetUserFullMethodName          = "/" + ServiceName + "/GetUser"

	ListAllTransactionsFullMethodName = "/" + ServiceName + "/ListAllTransactions"
	ListAllUsersFullMethodName        = "/" + ServiceName + "/ListAllUsers"
)

// BudgetServiceServer is the server API for the BudgetService service.
// Requests and responses are google.protobuf.Struct messages so that amounts
// can arrive either as a decimal string or as a number.
type BudgetServiceServer interface {
	Purchase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBudgets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAllTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAllUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterBudgetServiceServer registers srv on s
func RegisterBudgetServiceServer(s grpc.ServiceRegistrar, srv BudgetServiceServer) {
	s.RegisterService(&BudgetService_ServiceDesc, srv)
}

type unaryMethod func(srv BudgetServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BudgetServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BudgetServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BudgetService_ServiceDesc is the grpc.ServiceDesc for the BudgetService service
var BudgetService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BudgetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Purchase",
			Handler:    unaryHandler(PurchaseFullMethodName, BudgetServiceServer.Purchase),
		},
		{
			MethodName: "ListBudgets",
			Handler:    unaryHandler(ListBudgetsFullMethodName, BudgetServiceServer.ListBudgets),
		},
		{
			MethodName: "ListTransactions",
			Handler:    unaryHandler(ListTransactionsFullMethodName, BudgetServiceServer.ListTransactions),
		},
		{
			MethodName: "ListUsers",
			Handler:    unaryHandler(ListUsersFullMethodName, BudgetServiceServer.ListUsers),
		},
		{
			MethodName: "GetUser",
			Handler:    unaryHandler(GetUserFullMethodName, BudgetServiceServer.GetUser),
		},
		{
			MethodName: "ListAllTransactions",
			Handler:    unaryHandler(ListAllTransactionsFullMethodName, BudgetServiceServer.ListAllTransactions),
		},
		{
			MethodName: "ListAllUsers",
			Handler:    unaryHandler(ListAllUsersFullMethodName, BudgetServiceServer.ListAllUsers),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "budgetpool/v1/budget.proto",
}

// BudgetServiceClient is the client API for the BudgetService service
type BudgetServiceClient interface {
	Purchase(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListBudgets(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListTransactions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListAllTransactions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListAllUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type budgetServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBudgetServiceClient creates a client on top of cc
func NewBudgetServiceClient(cc grpc.ClientConnInterface) BudgetServiceClient {
	return &budgetServiceClient{cc: cc}
}

func (c *budgetServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *budgetServiceClient) Purchase(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PurchaseFullMethodName, in, opts...)
}

func (c *budgetServiceClient) ListBudgets(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListBudgetsFullMethodName, in, opts...)
}

func (c *budgetServiceClient) ListTransactions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListTransactionsFullMethodName, in, opts...)
}

func (c *budgetServiceClient) ListUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListUsersFullMethodName, in, opts...)
}

func (c *budgetServiceClient) GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetUserFullMethodName, in, opts...)
}

func (c *budgetServiceClient) ListAllTransactions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListAllTransactionsFullMethodName, in, opts...)
}

func (c *budgetServiceClient) ListAllUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListAllUsersFullMethodName, in, opts...)
}
