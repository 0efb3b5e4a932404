package pubsub

import (
	"context"
	"testing"
	"time"

	"tradeflow/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(symbol string, price float64) *models.Tick {
	return &models.Tick{Symbol: symbol, Price: price, Timestamp: time.Now()}
}

func receive(t *testing.T, ch <-chan *models.Tick) *models.Tick {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick")
		return nil
	}
}

func TestBroker_SymbolFiltering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewBroker()
	require.NoError(t, broker.Start(ctx))
	defer broker.Stop()

	goog := broker.Subscribe("goog", []string{"GOOG"}, 10)
	all := broker.Subscribe("all", nil, 10)

	assert.Equal(t, 2, broker.GetSubscriberCountForSymbol("GOOG"))
	assert.Equal(t, 1, broker.GetSubscriberCountForSymbol("TSLA"))

	broker.Publish(tick("TSLA", 250))
	broker.Publish(tick("GOOG", 142))

	assert.Equal(t, "TSLA", receive(t, all.TickChan).Symbol)
	assert.Equal(t, "GOOG", receive(t, all.TickChan).Symbol)
	assert.Equal(t, "GOOG", receive(t, goog.TickChan).Symbol)

	select {
	case extra := <-goog.TickChan:
		t.Fatalf("unexpected tick for %s", extra.Symbol)
	default:
	}
}

func TestBroker_UpdateSubscription(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe("a", []string{"GOOG"}, 1)

	assert.True(t, broker.UpdateSubscription("a", []string{"NVDA"}))
	assert.True(t, sub.IsInterestedIn("NVDA"))
	assert.False(t, sub.IsInterestedIn("GOOG"))

	assert.False(t, broker.UpdateSubscription("missing", nil))
}

func TestBroker_ResubscribeClosesPrevious(t *testing.T) {
	broker := NewBroker()
	first := broker.Subscribe("a", nil, 1)
	broker.Subscribe("a", nil, 1)

	_, ok := <-first.TickChan
	assert.False(t, ok)
	assert.Equal(t, 1, broker.GetSubscriberCount())
}

func TestBroker_StopClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewBroker()
	require.NoError(t, broker.Start(ctx))
	sub := broker.Subscribe("a", nil, 1)

	broker.Stop()
	_, ok := <-sub.TickChan
	assert.False(t, ok)

	broker.Publish(tick("GOOG", 1))
	broker.Unsubscribe("a")
}

func TestBroker_StatsCountSlowSubscriberDrops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewBrokerWithQueue(8)
	require.NoError(t, broker.Start(ctx))
	defer broker.Stop()

	broker.Subscribe("slow", []string{"GOOG"}, 1)
	for i := 0; i < 3; i++ {
		broker.Publish(tick("GOOG", 140+float64(i)))
	}

	require.Eventually(t, func() bool {
		stats := broker.GetStats()
		return stats.Delivered+stats.Dropped == 3
	}, time.Second, 5*time.Millisecond)

	stats := broker.GetStats()
	assert.True(t, stats.Running)
	assert.Equal(t, 1, stats.Subscribers)
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(2), stats.Dropped)
}
