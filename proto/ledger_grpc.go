// Package proto 定義 ledger.v1.LedgerService。
// 請求與回應皆為 google.protobuf.Struct，不需要 protoc 產生程式碼。
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const LedgerService_ServiceName = "ledger.v1.LedgerService"

const (
	LedgerService_CreateAccount_FullMethodName     = "/ledger.v1.LedgerService/CreateAccount"
	LedgerService_AppendTransaction_FullMethodName = "/ledger.v1.LedgerService/AppendTransaction"
	LedgerService_GetAccount_FullMethodName        = "/ledger.v1.LedgerService/GetAccount"
	LedgerService_ListAccounts_FullMethodName      = "/ledger.v1.LedgerService/ListAccounts"
	LedgerService_ListTransactions_FullMethodName  = "/ledger.v1.LedgerService/ListTransactions"
)

// LedgerServiceClient 客戶端 API
type LedgerServiceClient interface {
	CreateAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	AppendTransaction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListAccounts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListTransactions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc}
}

func (c *ledgerServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) CreateAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LedgerService_CreateAccount_FullMethodName, in, opts...)
}

func (c *ledgerServiceClient) AppendTransaction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LedgerService_AppendTransaction_FullMethodName, in, opts...)
}

func (c *ledgerServiceClient) GetAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LedgerService_GetAccount_FullMethodName, in, opts...)
}

func (c *ledgerServiceClient) ListAccounts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LedgerService_ListAccounts_FullMethodName, in, opts...)
}

func (c *ledgerServiceClient) ListTransactions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, LedgerService_ListTransactions_FullMethodName, in, opts...)
}

// LedgerServiceServer 伺服端 API
type LedgerServiceServer interface {
	CreateAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AppendTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAccounts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedLedgerServiceServer 嵌入後未實作的方法回傳 codes.Unimplemented
type UnimplementedLedgerServiceServer struct{}

func (UnimplementedLedgerServiceServer) CreateAccount(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateAccount not implemented")
}

func (UnimplementedLedgerServiceServer) AppendTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AppendTransaction not implemented")
}

func (UnimplementedLedgerServiceServer) GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAccount not implemented")
}

func (UnimplementedLedgerServiceServer) ListAccounts(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListAccounts not implemented")
}

func (UnimplementedLedgerServiceServer) ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListTransactions not implemented")
}

func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerService_ServiceDesc, srv)
}

// unaryHandler 產生單一 RPC 的 handler，call 負責呼叫對應的伺服端方法
func unaryHandler(fullMethod string, call func(LedgerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerService_ServiceDesc ledger.v1.LedgerService 的 grpc.ServiceDesc
var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerService_ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateAccount",
			Handler:    unaryHandler(LedgerService_CreateAccount_FullMethodName, LedgerServiceServer.CreateAccount),
		},
		{
			MethodName: "AppendTransaction",
			Handler:    unaryHandler(LedgerService_AppendTransaction_FullMethodName, LedgerServiceServer.AppendTransaction),
		},
		{
			MethodName: "GetAccount",
			Handler:    unaryHandler(LedgerService_GetAccount_FullMethodName, LedgerServiceServer.GetAccount),
		},
		{
			MethodName: "ListAccounts",
			Handler:    unaryHandler(LedgerService_ListAccounts_FullMethodName, LedgerServiceServer.ListAccounts),
		},
		{
			MethodName: "ListTransactions",
			Handler:    unaryHandler(LedgerService_ListTransactions_FullMethodName, LedgerServiceServer.ListTransactions),
		},
	},
	Streams: []grpc.StreamDesc{},
}
