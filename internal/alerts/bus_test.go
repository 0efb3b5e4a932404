package alerts

import (
	"context"
	"testing"
	"time"

	"tradeflow/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus()
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop()

	a := bus.Subscribe("a", 10)
	b := bus.Subscribe("b", 10)
	assert.Equal(t, 2, bus.GetSubscriberCount())

	bus.Publish(models.NewNotification(models.CategorySystem, "hello", "world", time.Now()))

	for _, sub := range []*Subscriber{a, b} {
		select {
		case n := <-sub.NotificationChan:
			assert.Equal(t, "hello", n.Title)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", sub.ID)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("a", 1)
	bus.Unsubscribe("a")

	_, ok := <-sub.NotificationChan
	assert.False(t, ok)
	assert.Equal(t, 0, bus.GetSubscriberCount())

	bus.Unsubscribe("a")
}

func TestBus_StopClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus()
	require.NoError(t, bus.Start(ctx))
	sub := bus.Subscribe("a", 1)

	bus.Stop()
	bus.Stop()

	_, ok := <-sub.NotificationChan
	assert.False(t, ok)
	assert.False(t, bus.GetStats().Running)

	bus.Publish(models.NewNotification(models.CategorySystem, "after", "stop", time.Now()))
}

func TestBus_CategoryFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus()
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop()

	alertsOnly := bus.Subscribe("alerts", 10, models.CategoryPriceAlert)
	everything := bus.Subscribe("all", 10)

	now := time.Now()
	bus.Publish(models.NewNotification(models.CategoryPortfolio, "Stock Added", "GOOG", now))
	bus.Publish(models.NewNotification(models.CategoryPriceAlert, "GOOG Price Alert", "GOOG is up 3.10% today", now))

	for _, want := range []string{"Stock Added", "GOOG Price Alert"} {
		select {
		case n := <-everything.NotificationChan:
			assert.Equal(t, want, n.Title)
		case <-time.After(time.Second):
			t.Fatalf("expected %q", want)
		}
	}

	select {
	case n := <-alertsOnly.NotificationChan:
		assert.Equal(t, models.CategoryPriceAlert, n.Category)
	case <-time.After(time.Second):
		t.Fatal("price alert subscriber received nothing")
	}
	select {
	case n := <-alertsOnly.NotificationChan:
		t.Fatalf("unexpected %q for price alert subscriber", n.Title)
	default:
	}
}
