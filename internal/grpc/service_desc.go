package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The dashboard service is described by hand over protobuf well-known types,
// so no generated code is needed on either side.
const ServiceName = "tradeflow.v1.Dashboard"

const (
	methodFollow                = "Follow"
	methodUnfollow              = "Unfollow"
	methodAddShares             = "AddShares"
	methodGetDashboard          = "GetDashboard"
	methodListInstruments       = "ListInstruments"
	methodMarkNotificationsRead = "MarkNotificationsRead"
	methodSignOut               = "SignOut"
	streamQuotes                = "StreamQuotes"
	streamNotifications         = "StreamNotifications"
)

// DashboardServer is the server API for the tradeflow.v1.Dashboard service.
type DashboardServer interface {
	Follow(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Unfollow(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	AddShares(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDashboard(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListInstruments(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	MarkNotificationsRead(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	SignOut(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	StreamQuotes(*structpb.ListValue, grpc.ServerStreamingServer[structpb.Struct]) error
	StreamNotifications(*structpb.ListValue, grpc.ServerStreamingServer[structpb.Struct]) error
}

var Dashboard_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodFollow, Handler: unaryHandler(methodFollow, DashboardServer.Follow)},
		{MethodName: methodUnfollow, Handler: unaryHandler(methodUnfollow, DashboardServer.Unfollow)},
		{MethodName: methodAddShares, Handler: unaryHandler(methodAddShares, DashboardServer.AddShares)},
		{MethodName: methodGetDashboard, Handler: unaryHandler(methodGetDashboard, DashboardServer.GetDashboard)},
		{MethodName: methodListInstruments, Handler: unaryHandler(methodListInstruments, DashboardServer.ListInstruments)},
		{MethodName: methodMarkNotificationsRead, Handler: unaryHandler(methodMarkNotificationsRead, DashboardServer.MarkNotificationsRead)},
		{MethodName: methodSignOut, Handler: unaryHandler(methodSignOut, DashboardServer.SignOut)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: streamQuotes, Handler: streamHandler(DashboardServer.StreamQuotes), ServerStreams: true},
		{StreamName: streamNotifications, Handler: streamHandler(DashboardServer.StreamNotifications), ServerStreams: true},
	},
	Metadata: "tradeflow/v1/dashboard",
}

func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&Dashboard_ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Res any](method string, call func(DashboardServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DashboardServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DashboardServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamHandler[Req any](call func(DashboardServer, *Req, grpc.ServerStreamingServer[structpb.Struct]) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(DashboardServer), in, &grpc.GenericServerStream[Req, structpb.Struct]{ServerStream: stream})
	}
}
