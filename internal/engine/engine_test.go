package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradeflow/internal/alerts"
	"tradeflow/internal/catalog"
	"tradeflow/internal/identity"
	"tradeflow/internal/portfolio"
	"tradeflow/internal/pubsub"
	"tradeflow/internal/simulator"
	"tradeflow/internal/subscriptions"
	"tradeflow/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource cycles through floats and always returns the smallest int.
type scriptedSource struct {
	floats []float64
	i      int
}

func (s *scriptedSource) Float64() float64 {
	v := s.floats[s.i%len(s.floats)]
	s.i++
	return v
}

func (s *scriptedSource) Int63n(n int64) int64 { return 0 }

// failingStore accepts loads but rejects every write.
type failingStore struct {
	*subscriptions.MemoryStore
	err error
}

func (f *failingStore) Insert(ctx context.Context, userID, symbol string) error { return f.err }
func (f *failingStore) Delete(ctx context.Context, userID, symbol string) error { return f.err }

var testUser = models.User{ID: "user-1", Email: "trader@example.com"}

func newEngine(t *testing.T, initial []string, opts Options) *Engine {
	t.Helper()
	if opts.Random == nil {
		opts.Random = simulator.NewSource(1)
	}
	e := New(testUser, initial, opts)
	t.Cleanup(e.Stop)
	return e
}

func TestNew_InitialSubscriptions(t *testing.T) {
	e := newEngine(t, []string{"goog", "NVDA", "AAPL", "GOOG"}, Options{})

	assert.Equal(t, []string{"GOOG", "NVDA"}, e.Followed())

	notes := e.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, models.CategorySystem, notes[0].Category)
	assert.Equal(t, "Welcome to TradeFlow", notes[0].Title)
}

func TestNew_EmptyHasNoWelcomeUntilFirstFollow(t *testing.T) {
	store := subscriptions.NewMemoryStore()
	e := newEngine(t, nil, Options{Store: store})
	assert.Empty(t, e.Notifications())

	_, err := e.Follow(context.Background(), "TSLA")
	require.NoError(t, err)

	notes := e.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, "Stock Added", notes[0].Title)
	assert.Equal(t, "Welcome to TradeFlow", notes[1].Title)

	require.NoError(t, e.Unfollow(context.Background(), "TSLA"))
	_, err = e.Follow(context.Background(), "TSLA")
	require.NoError(t, err)

	welcomes := 0
	for _, n := range e.Notifications() {
		if n.Category == models.CategorySystem {
			welcomes++
		}
	}
	assert.Equal(t, 1, welcomes)
}

func TestFollow_NVDA(t *testing.T) {
	store := subscriptions.NewMemoryStore()
	e := newEngine(t, nil, Options{Store: store})

	p, err := e.Follow(context.Background(), "NVDA")
	require.NoError(t, err)

	assert.Equal(t, 467.30, p.Price)
	assert.Equal(t, 467.30, p.PreviousClose)
	assert.Equal(t, 467.30, p.High)
	assert.Equal(t, 467.30, p.Low)
	assert.Greater(t, p.Shares, int64(0))

	persisted, err := store.Load(context.Background(), testUser.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA"}, persisted)
}

func TestFollow_Rejections(t *testing.T) {
	e := newEngine(t, []string{"GOOG"}, Options{})
	before := e.Notifications()

	_, err := e.Follow(context.Background(), "GOOG")
	assert.ErrorIs(t, err, ErrAlreadyFollowing)

	_, err = e.Follow(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	assert.Equal(t, []string{"GOOG"}, e.Followed())
	assert.Len(t, e.Notifications(), len(before))
}

func TestUnfollow_Idempotent(t *testing.T) {
	store := subscriptions.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, testUser.ID, "GOOG"))
	require.NoError(t, store.Insert(ctx, testUser.ID, "TSLA"))

	e := newEngine(t, []string{"GOOG", "TSLA"}, Options{Store: store})

	require.NoError(t, e.Unfollow(ctx, "GOOG"))
	afterOnce := e.Positions()
	notesOnce := len(e.Notifications())

	require.NoError(t, e.Unfollow(ctx, "GOOG"))
	assert.Equal(t, afterOnce, e.Positions())
	assert.Len(t, e.Notifications(), notesOnce)

	persisted, _ := store.Load(ctx, testUser.ID)
	assert.Equal(t, []string{"TSLA"}, persisted)
}

func TestAddShares(t *testing.T) {
	e := newEngine(t, []string{"GOOG"}, Options{})
	before, _ := e.Position("GOOG")

	_, err := e.AddShares("GOOG", -5)
	assert.ErrorIs(t, err, ErrNegativeShares)
	after, _ := e.Position("GOOG")
	assert.Equal(t, before.Shares, after.Shares)

	p, err := e.AddShares("goog", 1)
	require.NoError(t, err)
	assert.Equal(t, before.Shares+1, p.Shares)

	_, err = e.AddShares("TSLA", 1)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestPersistenceFailure_NoRollback(t *testing.T) {
	cause := errors.New("connection refused")
	store := &failingStore{MemoryStore: subscriptions.NewMemoryStore(), err: cause}
	e := newEngine(t, nil, Options{Store: store})
	ctx := context.Background()

	p, err := e.Follow(ctx, "META")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.ErrorIs(t, err, cause)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "follow", perr.Op)
	assert.Equal(t, "META", perr.Symbol)

	assert.Equal(t, 505.75, p.Price)
	assert.Equal(t, []string{"META"}, e.Followed())
	assert.Equal(t, "Sync Failed", e.Notifications()[0].Title)

	err = e.Unfollow(ctx, "META")
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Empty(t, e.Followed())
}

func TestRunTick_Invariants(t *testing.T) {
	e := newEngine(t, catalog.Default().Symbols(), Options{Random: simulator.NewSource(11)})

	closes := make(map[string]float64)
	for _, p := range e.Positions() {
		closes[p.Symbol] = p.PreviousClose
	}

	for i := 0; i < 500; i++ {
		positions := e.RunTick()
		var expected float64
		for _, p := range positions {
			require.LessOrEqual(t, p.Low, p.Price)
			require.LessOrEqual(t, p.Price, p.High)
			require.GreaterOrEqual(t, p.Price, 1.0)
			require.Equal(t, closes[p.Symbol], p.PreviousClose)
			expected += p.Price * float64(p.Shares)
		}
		require.InDelta(t, expected, e.Snapshot().TotalValue, 1e-6)
		require.LessOrEqual(t, len(e.Notifications()), alerts.DefaultCapacity)
	}
	assert.Equal(t, uint64(500), e.TickCount())
}

func TestRunTick_ZeroChange(t *testing.T) {
	e := newEngine(t, []string{"AMZN"}, Options{Random: &scriptedSource{floats: []float64{0.5}}})

	for i := 0; i < 3; i++ {
		e.RunTick()
	}

	p, _ := e.Position("AMZN")
	assert.Zero(t, p.ChangePercent())
	assert.Zero(t, p.PnL())
	assert.Zero(t, e.Snapshot().TotalPnL)
}

func TestRunTick_PriceAlert(t *testing.T) {
	// Three +0.998% steps cross 3%; the fourth draw is the alert gate.
	rng := &scriptedSource{floats: []float64{0.999, 0.999, 0.999, 0.01}}
	e := newEngine(t, []string{"NVDA"}, Options{Random: rng})

	for i := 0; i < 3; i++ {
		e.RunTick()
	}

	notes := e.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, models.CategoryPriceAlert, notes[0].Category)
	assert.Equal(t, "NVDA Price Alert", notes[0].Title)
	assert.Contains(t, notes[0].Message, "NVDA is up 3.0")
}

func TestDashboard(t *testing.T) {
	e := newEngine(t, []string{"GOOG", "META", "NVDA"}, Options{})

	all := e.Dashboard("")
	assert.Equal(t, testUser, all.User)
	assert.Len(t, all.Holdings, 3)
	assert.Equal(t, []string{"TSLA", "AMZN"}, all.Available)
	assert.Equal(t, 1, all.UnreadCount)

	tech := e.Dashboard("technology")
	require.Len(t, tech.Holdings, 2)
	assert.Equal(t, "GOOG", tech.Holdings[0].Symbol)
	assert.Equal(t, "META", tech.Holdings[1].Symbol)
	assert.Equal(t, all.Snapshot, tech.Snapshot)

	none := e.Dashboard("bank")
	assert.Empty(t, none.Holdings)

	assert.Equal(t, portfolio.Compute(e.Positions()), all.Snapshot)
}

func TestDashboard_AllocationAndMovers(t *testing.T) {
	e := newEngine(t, []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"}, Options{})
	for i := 0; i < 20; i++ {
		e.RunTick()
	}

	d := e.Dashboard("")
	var total float64
	for _, h := range d.Holdings {
		total += h.Allocation
	}
	assert.InDelta(t, 100, total, 1e-9)
	assert.Len(t, d.TopMovers, 3)

	// Allocation is relative to the whole portfolio even when filtered.
	nvda := e.Dashboard("NVDA")
	require.Len(t, nvda.Holdings, 1)
	for _, h := range d.Holdings {
		if h.Symbol == "NVDA" {
			assert.Equal(t, h.Allocation, nvda.Holdings[0].Allocation)
		}
	}
}

func TestMarkRead(t *testing.T) {
	e := newEngine(t, []string{"GOOG"}, Options{})
	_, err := e.Follow(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 2, e.UnreadCount())

	require.NoError(t, e.MarkRead(e.Notifications()[0].ID))
	assert.Equal(t, 1, e.UnreadCount())
	assert.Equal(t, 1, e.MarkAllRead())
	assert.Equal(t, 0, e.UnreadCount())
}

func TestStreamingOutlets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := pubsub.NewBroker()
	bus := alerts.NewBus()
	require.NoError(t, broker.Start(ctx))
	require.NoError(t, bus.Start(ctx))
	defer broker.Stop()
	defer bus.Stop()

	ticks := broker.Subscribe("t", []string{"GOOG"}, 10)
	notes := bus.Subscribe("n", 10)

	e := newEngine(t, []string{"GOOG"}, Options{Broker: broker, Bus: bus})

	var mu sync.Mutex
	var views []models.Dashboard
	e.OnUpdate(func(d models.Dashboard) {
		mu.Lock()
		views = append(views, d)
		mu.Unlock()
	})

	e.RunTick()
	select {
	case tick := <-ticks.TickChan:
		assert.Equal(t, "GOOG", tick.Symbol)
	case <-time.After(time.Second):
		t.Fatal("no tick published")
	}

	_, err := e.Follow(ctx, "TSLA")
	require.NoError(t, err)
	select {
	case n := <-notes.NotificationChan:
		assert.Equal(t, "Stock Added", n.Title)
	case <-time.After(time.Second):
		t.Fatal("no notification published")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, views, 2)
	assert.Len(t, views[1].Holdings, 2)
}

func TestStartStop(t *testing.T) {
	e := newEngine(t, []string{"GOOG"}, Options{TickInterval: 5 * time.Millisecond})

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Start(context.Background()))

	require.Eventually(t, func() bool { return e.TickCount() >= 3 }, time.Second, 5*time.Millisecond)

	e.Stop()
	stopped := e.TickCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, e.TickCount())
	e.Stop()
}

func TestStart_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newEngine(t, []string{"GOOG"}, Options{TickInterval: time.Millisecond})
	require.NoError(t, e.Start(ctx))
	assert.True(t, e.Running())

	cancel()
	require.Eventually(t, func() bool { return !e.Running() }, time.Second, time.Millisecond)

	// A cancelled loop can be started again with a fresh context.
	require.NoError(t, e.Start(context.Background()))
	before := e.TickCount()
	require.Eventually(t, func() bool { return e.TickCount() > before }, time.Second, time.Millisecond)
	e.Stop()
}

func TestStartStop_Restart(t *testing.T) {
	e := newEngine(t, []string{"GOOG"}, Options{TickInterval: time.Millisecond})

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Start(context.Background()))
		before := e.TickCount()
		require.Eventually(t, func() bool { return e.TickCount() > before }, time.Second, time.Millisecond)

		e.Stop()
		assert.False(t, e.Running())
	}
}

func TestNotificationStream_ConcurrentMarkRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := alerts.NewBus()
	require.NoError(t, bus.Start(ctx))
	sub := bus.Subscribe("reader", 256)

	var received atomic.Int64
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for n := range sub.NotificationChan {
			if !n.Read && n.Title != "" {
				received.Add(1)
			}
		}
	}()

	e := newEngine(t, []string{"GOOG"}, Options{Bus: bus})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			e.Follow(ctx, "TSLA")
			e.Unfollow(ctx, "TSLA")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			e.MarkAllRead()
			for _, n := range e.Notifications() {
				e.MarkRead(n.ID)
			}
		}
	}()
	wg.Wait()

	require.Eventually(t, func() bool { return received.Load() > 0 }, time.Second, time.Millisecond)
	bus.Stop()

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was not closed")
	}
}

func TestConcurrentMutationsAndTicks(t *testing.T) {
	e := newEngine(t, []string{"GOOG"}, Options{TickInterval: time.Millisecond})
	require.NoError(t, e.Start(context.Background()))

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.Follow(ctx, "NVDA")
				e.AddShares("GOOG", 1)
				e.Dashboard("n")
				e.Unfollow(ctx, "NVDA")
			}
		}()
	}
	wg.Wait()
	e.Stop()

	for _, p := range e.Positions() {
		assert.LessOrEqual(t, p.Low, p.Price)
		assert.LessOrEqual(t, p.Price, p.High)
	}
	_, following := e.Position("NVDA")
	assert.False(t, following)
}

func TestSignOut(t *testing.T) {
	provider := identity.NewLocalProvider()
	user, err := provider.SignIn(testUser.Email)
	require.NoError(t, err)

	e := New(user, []string{"GOOG"}, Options{TickInterval: time.Millisecond, Random: simulator.NewSource(1)})
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, e.SignOut(context.Background(), provider))
	_, err = provider.User(context.Background(), user.ID)
	assert.ErrorIs(t, err, identity.ErrSignedOut)

	ticks := e.TickCount()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, ticks, e.TickCount())
}
