package grpc

import (
	"context"

	"tradeflow/pkg/models"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MutationResult is the outcome of a follow or unfollow. Persisted is false
// when the server kept the change in memory but could not store it.
type MutationResult struct {
	Position  models.Position
	Persisted bool
	Warning   string
}

// Client is a typed client for the tradeflow.v1.Dashboard service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Follow(ctx context.Context, symbol string) (MutationResult, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(methodFollow), wrapperspb.String(symbol), out); err != nil {
		return MutationResult{}, err
	}
	result := convertProtoToMutation(out)
	result.Position = convertProtoToPosition(out.GetFields()["position"].GetStructValue())
	return result, nil
}

func (c *Client) Unfollow(ctx context.Context, symbol string) (MutationResult, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(methodUnfollow), wrapperspb.String(symbol), out); err != nil {
		return MutationResult{}, err
	}
	return convertProtoToMutation(out), nil
}

func (c *Client) AddShares(ctx context.Context, symbol string, delta int64) (models.Position, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(methodAddShares), sharesRequest(symbol, delta), out); err != nil {
		return models.Position{}, err
	}
	return convertProtoToPosition(out), nil
}

func (c *Client) Dashboard(ctx context.Context, query string) (models.Dashboard, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(methodGetDashboard), wrapperspb.String(query), out); err != nil {
		return models.Dashboard{}, err
	}
	return convertProtoToDashboard(out), nil
}

func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod(methodListInstruments), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}

	instruments := make([]models.Instrument, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		instruments = append(instruments, convertProtoToInstrument(v.GetStructValue()))
	}
	return instruments, nil
}

// MarkRead marks the notification with id read. An empty id marks all of them.
func (c *Client) MarkRead(ctx context.Context, id string) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, fullMethod(methodMarkNotificationsRead), wrapperspb.String(id), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod(methodSignOut), &emptypb.Empty{}, new(emptypb.Empty))
}

// StreamQuotes returns a receive function that yields ticks until the stream
// ends or ctx is cancelled.
func (c *Client) StreamQuotes(ctx context.Context, symbols []string) (func() (*models.Tick, error), error) {
	stream, err := openServerStream[structpb.ListValue](ctx, c.cc, &Dashboard_ServiceDesc.Streams[0], streamQuotes, stringsToProto(symbols))
	if err != nil {
		return nil, err
	}
	return func() (*models.Tick, error) {
		msg, err := stream.Recv()
		if err != nil {
			return nil, err
		}
		return convertProtoToTick(msg), nil
	}, nil
}

// StreamNotifications streams new notifications of the given categories, or
// of every category when none are given.
func (c *Client) StreamNotifications(ctx context.Context, categories ...models.Category) (func() (*models.Notification, error), error) {
	names := make([]string, 0, len(categories))
	for _, category := range categories {
		names = append(names, category.String())
	}

	stream, err := openServerStream[structpb.ListValue](ctx, c.cc, &Dashboard_ServiceDesc.Streams[1], streamNotifications, stringsToProto(names))
	if err != nil {
		return nil, err
	}
	return func() (*models.Notification, error) {
		msg, err := stream.Recv()
		if err != nil {
			return nil, err
		}
		return convertProtoToNotification(msg), nil
	}, nil
}

func openServerStream[Req any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := cc.NewStream(ctx, desc, fullMethod(method))
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func convertProtoToMutation(s *structpb.Struct) MutationResult {
	f := s.GetFields()
	return MutationResult{
		Persisted: f["persisted"].GetBoolValue(),
		Warning:   f["warning"].GetStringValue(),
	}
}
