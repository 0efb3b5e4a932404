package grpc

import (
	"fmt"
	"time"

	"tradeflow/pkg/models"

	"google.golang.org/protobuf/types/known/structpb"
)

// Structs carry numbers as doubles. Volumes and share counts stay far below
// 2^53, so they survive the trip exactly.

func convertPositionToProto(p models.Position) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol":         structpb.NewStringValue(p.Symbol),
		"price":          structpb.NewNumberValue(p.Price),
		"previous_close": structpb.NewNumberValue(p.PreviousClose),
		"high":           structpb.NewNumberValue(p.High),
		"low":            structpb.NewNumberValue(p.Low),
		"volume":         structpb.NewNumberValue(float64(p.Volume)),
		"shares":         structpb.NewNumberValue(float64(p.Shares)),
		"change":         structpb.NewNumberValue(p.Change()),
		"change_percent": structpb.NewNumberValue(p.ChangePercent()),
	}}
}

func convertProtoToPosition(s *structpb.Struct) models.Position {
	f := s.GetFields()
	return models.Position{
		Symbol:        f["symbol"].GetStringValue(),
		Price:         f["price"].GetNumberValue(),
		PreviousClose: f["previous_close"].GetNumberValue(),
		High:          f["high"].GetNumberValue(),
		Low:           f["low"].GetNumberValue(),
		Volume:        int64(f["volume"].GetNumberValue()),
		Shares:        int64(f["shares"].GetNumberValue()),
	}
}

func convertHoldingToProto(h models.Holding) *structpb.Struct {
	s := convertPositionToProto(h.Position)
	s.Fields["name"] = structpb.NewStringValue(h.Name)
	s.Fields["sector"] = structpb.NewStringValue(h.Sector)
	s.Fields["color"] = structpb.NewStringValue(h.Color)
	s.Fields["value"] = structpb.NewNumberValue(h.Value)
	s.Fields["allocation"] = structpb.NewNumberValue(h.Allocation)
	return s
}

func convertProtoToHolding(s *structpb.Struct) models.Holding {
	f := s.GetFields()
	return models.Holding{
		Position:      convertProtoToPosition(s),
		Name:          f["name"].GetStringValue(),
		Sector:        f["sector"].GetStringValue(),
		Color:         f["color"].GetStringValue(),
		Change:        f["change"].GetNumberValue(),
		ChangePercent: f["change_percent"].GetNumberValue(),
		Value:         f["value"].GetNumberValue(),
		Allocation:    f["allocation"].GetNumberValue(),
	}
}

func convertTickToProto(tick *models.Tick) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol":         structpb.NewStringValue(tick.Symbol),
		"price":          structpb.NewNumberValue(tick.Price),
		"change":         structpb.NewNumberValue(tick.Change),
		"change_percent": structpb.NewNumberValue(tick.ChangePercent),
		"high":           structpb.NewNumberValue(tick.High),
		"low":            structpb.NewNumberValue(tick.Low),
		"volume":         structpb.NewNumberValue(float64(tick.Volume)),
		"timestamp":      structpb.NewStringValue(tick.Timestamp.Format(time.RFC3339Nano)),
	}}
}

func convertProtoToTick(s *structpb.Struct) *models.Tick {
	f := s.GetFields()
	return &models.Tick{
		Symbol:        f["symbol"].GetStringValue(),
		Price:         f["price"].GetNumberValue(),
		Change:        f["change"].GetNumberValue(),
		ChangePercent: f["change_percent"].GetNumberValue(),
		High:          f["high"].GetNumberValue(),
		Low:           f["low"].GetNumberValue(),
		Volume:        int64(f["volume"].GetNumberValue()),
		Timestamp:     parseTime(f["timestamp"].GetStringValue()),
	}
}

func convertNotificationToProto(n *models.Notification) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":         structpb.NewStringValue(n.ID),
		"category":   structpb.NewStringValue(n.Category.String()),
		"title":      structpb.NewStringValue(n.Title),
		"message":    structpb.NewStringValue(n.Message),
		"created_at": structpb.NewStringValue(n.CreatedAt.Format(time.RFC3339Nano)),
		"read":       structpb.NewBoolValue(n.Read),
	}}
}

func convertProtoToNotification(s *structpb.Struct) *models.Notification {
	f := s.GetFields()
	return &models.Notification{
		ID:        f["id"].GetStringValue(),
		Category:  models.ParseCategory(f["category"].GetStringValue()),
		Title:     f["title"].GetStringValue(),
		Message:   f["message"].GetStringValue(),
		CreatedAt: parseTime(f["created_at"].GetStringValue()),
		Read:      f["read"].GetBoolValue(),
	}
}

func convertInstrumentToProto(i models.Instrument) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol":          structpb.NewStringValue(i.Symbol),
		"name":            structpb.NewStringValue(i.Name),
		"sector":          structpb.NewStringValue(i.Sector),
		"color":           structpb.NewStringValue(i.Color),
		"reference_price": structpb.NewNumberValue(i.ReferencePrice),
	}}
}

func convertProtoToInstrument(s *structpb.Struct) models.Instrument {
	f := s.GetFields()
	return models.Instrument{
		Symbol:         f["symbol"].GetStringValue(),
		Name:           f["name"].GetStringValue(),
		Sector:         f["sector"].GetStringValue(),
		Color:          f["color"].GetStringValue(),
		ReferencePrice: f["reference_price"].GetNumberValue(),
	}
}

func convertSnapshotToProto(s models.Snapshot) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"total_value":          structpb.NewNumberValue(s.TotalValue),
		"total_pnl":            structpb.NewNumberValue(s.TotalPnL),
		"total_return_percent": structpb.NewNumberValue(s.TotalReturnPercent),
		"positions":            structpb.NewNumberValue(float64(s.Positions)),
	}}
}

func convertProtoToSnapshot(s *structpb.Struct) models.Snapshot {
	f := s.GetFields()
	return models.Snapshot{
		TotalValue:         f["total_value"].GetNumberValue(),
		TotalPnL:           f["total_pnl"].GetNumberValue(),
		TotalReturnPercent: f["total_return_percent"].GetNumberValue(),
		Positions:          int(f["positions"].GetNumberValue()),
	}
}

func convertDashboardToProto(d models.Dashboard) *structpb.Struct {
	holdings := make([]*structpb.Value, 0, len(d.Holdings))
	for _, h := range d.Holdings {
		holdings = append(holdings, structpb.NewStructValue(convertHoldingToProto(h)))
	}
	available := make([]*structpb.Value, 0, len(d.Available))
	for _, symbol := range d.Available {
		available = append(available, structpb.NewStringValue(symbol))
	}
	notifications := make([]*structpb.Value, 0, len(d.Notifications))
	for _, n := range d.Notifications {
		notifications = append(notifications, structpb.NewStructValue(convertNotificationToProto(n)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"user": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"id":    structpb.NewStringValue(d.User.ID),
			"email": structpb.NewStringValue(d.User.Email),
		}}),
		"snapshot":      structpb.NewStructValue(convertSnapshotToProto(d.Snapshot)),
		"holdings":      structpb.NewListValue(&structpb.ListValue{Values: holdings}),
		"available":     structpb.NewListValue(&structpb.ListValue{Values: available}),
		"top_movers":    structpb.NewListValue(stringsToProto(d.TopMovers)),
		"notifications": structpb.NewListValue(&structpb.ListValue{Values: notifications}),
		"unread_count":  structpb.NewNumberValue(float64(d.UnreadCount)),
		"query":         structpb.NewStringValue(d.Query),
	}}
}

func convertProtoToDashboard(s *structpb.Struct) models.Dashboard {
	f := s.GetFields()
	user := f["user"].GetStructValue().GetFields()

	d := models.Dashboard{
		User: models.User{
			ID:    user["id"].GetStringValue(),
			Email: user["email"].GetStringValue(),
		},
		Snapshot:    convertProtoToSnapshot(f["snapshot"].GetStructValue()),
		UnreadCount: int(f["unread_count"].GetNumberValue()),
		Query:       f["query"].GetStringValue(),
	}
	for _, v := range f["holdings"].GetListValue().GetValues() {
		d.Holdings = append(d.Holdings, convertProtoToHolding(v.GetStructValue()))
	}
	for _, v := range f["available"].GetListValue().GetValues() {
		d.Available = append(d.Available, v.GetStringValue())
	}
	d.TopMovers = stringsFromProto(f["top_movers"].GetListValue())
	for _, v := range f["notifications"].GetListValue().GetValues() {
		d.Notifications = append(d.Notifications, convertProtoToNotification(v.GetStructValue()))
	}
	return d
}

func stringsFromProto(list *structpb.ListValue) []string {
	symbols := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		symbols = append(symbols, v.GetStringValue())
	}
	return symbols
}

func stringsToProto(symbols []string) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(symbols))
	for _, symbol := range symbols {
		values = append(values, structpb.NewStringValue(symbol))
	}
	return &structpb.ListValue{Values: values}
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func sharesRequest(symbol string, delta int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol": structpb.NewStringValue(symbol),
		"delta":  structpb.NewNumberValue(float64(delta)),
	}}
}

func parseSharesRequest(s *structpb.Struct) (string, int64, error) {
	f := s.GetFields()
	symbol := f["symbol"].GetStringValue()
	delta := f["delta"].GetNumberValue()
	if delta != float64(int64(delta)) {
		return "", 0, fmt.Errorf("share delta must be a whole number, got %v", delta)
	}
	return symbol, int64(delta), nil
}
