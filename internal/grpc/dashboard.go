package grpc

import (
	"context"
	"errors"
	"strings"

	"tradeflow/internal/alerts"
	"tradeflow/internal/engine"
	"tradeflow/internal/identity"
	"tradeflow/internal/logger"
	"tradeflow/internal/pubsub"
	"tradeflow/pkg/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const streamBufferSize = 100

var _ DashboardServer = (*DashboardService)(nil)

// DashboardService serves one engine session over gRPC.
type DashboardService struct {
	engine   *engine.Engine
	broker   *pubsub.Broker
	bus      *alerts.Bus
	identity identity.Provider
	log      *logger.Logger
}

func NewDashboardService(e *engine.Engine, broker *pubsub.Broker, bus *alerts.Bus, provider identity.Provider, log *logger.Logger) *DashboardService {
	if log == nil {
		log = logger.Discard()
	}
	return &DashboardService{
		engine:   e,
		broker:   broker,
		bus:      bus,
		identity: provider,
		log:      log,
	}
}

func (s *DashboardService) Follow(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.GetValue()) == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}

	position, err := s.engine.Follow(ctx, req.GetValue())
	resp, err := mutationResponse(err)
	if err != nil {
		return nil, err
	}
	resp.Fields["position"] = structpb.NewStructValue(convertPositionToProto(position))
	return resp, nil
}

func (s *DashboardService) Unfollow(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.GetValue()) == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}

	return mutationResponse(s.engine.Unfollow(ctx, req.GetValue()))
}

func (s *DashboardService) AddShares(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	symbol, delta, err := parseSharesRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	position, err := s.engine.AddShares(symbol, delta)
	if err != nil {
		return nil, toStatus(err)
	}
	return convertPositionToProto(position), nil
}

func (s *DashboardService) GetDashboard(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	return convertDashboardToProto(s.engine.Dashboard(req.GetValue())), nil
}

func (s *DashboardService) ListInstruments(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error) {
	instruments := s.engine.Catalog().Instruments()

	values := make([]*structpb.Value, 0, len(instruments))
	for _, instrument := range instruments {
		values = append(values, structpb.NewStructValue(convertInstrumentToProto(instrument)))
	}
	return &structpb.ListValue{Values: values}, nil
}

// MarkNotificationsRead marks one notification read, or all of them when the
// id is empty. It returns how many notifications changed.
func (s *DashboardService) MarkNotificationsRead(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	if req.GetValue() == "" {
		return wrapperspb.Int64(int64(s.engine.MarkAllRead())), nil
	}
	if err := s.engine.MarkRead(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(1), nil
}

func (s *DashboardService) SignOut(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.engine.SignOut(ctx, s.identity); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// StreamQuotes pushes a tick per followed symbol on every simulation step. An
// empty symbol list streams every followed symbol.
func (s *DashboardService) StreamQuotes(req *structpb.ListValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if err := s.authorize(stream.Context()); err != nil {
		return err
	}

	symbols := stringsFromProto(req)
	for i, symbol := range symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(symbol))
	}

	subscriberID := generateSubscriberID("quotes")
	s.log.Info("Client subscribing to quotes for symbols: %v (subscriber: %s)", symbols, subscriberID)

	subscriber := s.broker.Subscribe(subscriberID, symbols, streamBufferSize)
	defer s.broker.Unsubscribe(subscriberID)

	for {
		select {
		case <-stream.Context().Done():
			s.log.Info("Client disconnected from quote stream (subscriber: %s)", subscriberID)
			return stream.Context().Err()
		case tick, ok := <-subscriber.TickChan:
			if !ok {
				return nil
			}
			if err := stream.Send(convertTickToProto(tick)); err != nil {
				s.log.Error("Error sending tick to client (subscriber: %s): %v", subscriberID, err)
				return err
			}
		}
	}
}

// StreamNotifications pushes new notifications of the requested categories,
// named as "price_alert", "portfolio" or "system". An empty list streams all.
func (s *DashboardService) StreamNotifications(req *structpb.ListValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if err := s.authorize(stream.Context()); err != nil {
		return err
	}

	var categories []models.Category
	for _, name := range stringsFromProto(req) {
		category := models.ParseCategory(name)
		if category == models.CategoryUnspecified {
			return status.Errorf(codes.InvalidArgument, "unknown notification category %q", name)
		}
		categories = append(categories, category)
	}

	subscriberID := generateSubscriberID("notifications")
	s.log.Info("Client subscribing to notifications %v (subscriber: %s)", categories, subscriberID)

	subscriber := s.bus.Subscribe(subscriberID, streamBufferSize, categories...)
	defer s.bus.Unsubscribe(subscriberID)

	for {
		select {
		case <-stream.Context().Done():
			s.log.Info("Client disconnected from notification stream (subscriber: %s)", subscriberID)
			return stream.Context().Err()
		case n, ok := <-subscriber.NotificationChan:
			if !ok {
				return nil
			}
			if err := stream.Send(convertNotificationToProto(n)); err != nil {
				s.log.Error("Error sending notification to client (subscriber: %s): %v", subscriberID, err)
				return err
			}
		}
	}
}

func (s *DashboardService) authorize(ctx context.Context) error {
	if _, err := s.identity.User(ctx, s.engine.User().ID); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

// mutationResponse reports a follow or unfollow. A persistence failure still
// succeeds at the RPC level because the in-memory change stands.
func mutationResponse(err error) (*structpb.Struct, error) {
	resp := &structpb.Struct{Fields: map[string]*structpb.Value{
		"persisted": structpb.NewBoolValue(true),
	}}

	switch {
	case err == nil:
	case errors.Is(err, engine.ErrPersistenceFailure):
		resp.Fields["persisted"] = structpb.NewBoolValue(false)
		resp.Fields["warning"] = structpb.NewStringValue(err.Error())
	default:
		return nil, toStatus(err)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, engine.ErrUnknownSymbol), errors.Is(err, alerts.ErrNotificationNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrAlreadyFollowing):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, engine.ErrNegativeShares):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, identity.ErrUnknownUser), errors.Is(err, identity.ErrSignedOut):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
