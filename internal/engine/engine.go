package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"tradeflow/internal/alerts"
	"tradeflow/internal/catalog"
	"tradeflow/internal/identity"
	"tradeflow/internal/logger"
	"tradeflow/internal/portfolio"
	"tradeflow/internal/pubsub"
	"tradeflow/internal/simulator"
	"tradeflow/internal/subscriptions"
	"tradeflow/pkg/models"
)

const (
	DefaultTickInterval = time.Second

	topMoversCount = 3
)

type Options struct {
	Catalog      *catalog.Catalog
	Store        subscriptions.Store
	Random       simulator.Source
	TickInterval time.Duration
	FeedCapacity int
	Now          func() time.Time
	Logger       *logger.Logger
	// Broker and Bus are optional streaming outlets.
	Broker *pubsub.Broker
	Bus    *alerts.Bus
}

// Engine is the live state of one user's dashboard. Ticks and user mutations
// are serialized by a single mutex so no tick observes a half-applied change.
type Engine struct {
	user     models.User
	catalog  *catalog.Catalog
	store    subscriptions.Store
	sim      *simulator.Simulator
	gen      *alerts.Generator
	feed     *alerts.Feed
	broker   *pubsub.Broker
	bus      *alerts.Bus
	log      *logger.Logger
	now      func() time.Time
	interval time.Duration
	ticks    uint64
	mu       sync.Mutex

	listeners  []func(models.Dashboard)
	listenerMu sync.RWMutex

	running  bool
	stopChan chan struct{}
	done     chan struct{}
	runMu    sync.Mutex
}

// New builds the engine for user with the symbols loaded from the
// subscription store. Unknown or duplicate initial symbols are skipped.
func New(user models.User, initial []string, opts Options) *Engine {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Store == nil {
		opts.Store = subscriptions.NewMemoryStore()
	}
	if opts.Random == nil {
		opts.Random = simulator.NewSource(time.Now().UnixNano())
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	e := &Engine{
		user:     user,
		catalog:  opts.Catalog,
		store:    opts.Store,
		sim:      simulator.New(opts.Catalog, opts.Random),
		gen:      alerts.NewGenerator(opts.Random, opts.Now),
		feed:     alerts.NewFeed(opts.FeedCapacity),
		broker:   opts.Broker,
		bus:      opts.Bus,
		log:      opts.Logger,
		now:      opts.Now,
		interval: opts.TickInterval,
	}

	for _, symbol := range initial {
		if _, err := e.sim.Follow(normalize(symbol)); err != nil {
			e.log.Warning("Skipping initial subscription %q for %s: %v", symbol, user.ID, err)
		}
	}

	if welcome, ok := e.gen.Welcome(e.sim.Len()); ok {
		e.feed.Push(welcome)
	}

	return e
}

// Start launches the tick loop. It is a no-op while the loop is running and
// may be called again after Stop or after ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return nil
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	stop, done := e.stopChan, e.done
	e.runMu.Unlock()

	e.log.Info("Starting tick loop for %s every %v", e.user.Email, e.interval)
	go e.run(ctx, stop, done)
	return nil
}

// Stop halts the tick loop and waits for it to exit.
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.done
	e.runMu.Unlock()

	<-done
	e.log.Info("Tick loop stopped for %s after %d ticks", e.user.Email, e.TickCount())
}

func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

// run fires one tick per interval. time.Ticker drops ticks a slow receiver
// missed, so a suspended host resumes without catch-up ticks.
func (e *Engine) run(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer e.exited(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			e.RunTick()
		}
	}
}

// exited clears the running flag when the loop ends on its own, such as on
// context cancellation. A loop already replaced by a later Start is ignored.
func (e *Engine) exited(done chan struct{}) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.done == done {
		e.running = false
	}
}

// RunTick advances the simulation by one step and returns the new positions.
func (e *Engine) RunTick() []models.Position {
	e.mu.Lock()
	prev := e.sim.Positions()
	next := e.sim.Tick()
	fired := e.gen.EvaluateAll(prev, next)
	for _, n := range fired {
		e.feed.Push(n)
	}
	e.ticks++
	ts := e.now()
	view := e.dashboardLocked("")
	e.mu.Unlock()

	for _, n := range fired {
		e.log.Debug("Price alert: %s", n.Message)
	}
	if e.broker != nil {
		for _, p := range next {
			e.broker.Publish(models.NewTick(p, ts))
		}
	}
	e.publish(fired...)
	e.notify(view)

	return next
}

// Follow starts tracking symbol. The position exists in memory as soon as
// Follow returns, even when the returned error is a PersistenceError.
func (e *Engine) Follow(ctx context.Context, symbol string) (models.Position, error) {
	symbol = normalize(symbol)

	e.mu.Lock()
	position, err := e.sim.Follow(symbol)
	if err != nil {
		e.mu.Unlock()
		return models.Position{}, err
	}

	var emitted []*models.Notification
	if welcome, ok := e.gen.Welcome(e.sim.Len()); ok {
		emitted = append(emitted, welcome)
	}
	emitted = append(emitted, e.gen.Followed(symbol))
	for _, n := range emitted {
		e.feed.Push(n)
	}
	view := e.dashboardLocked("")
	e.mu.Unlock()

	e.log.Info("%s followed %s at %.2f with %d shares", e.user.Email, symbol, position.Price, position.Shares)
	e.publish(emitted...)
	e.notify(view)

	if err := e.store.Insert(ctx, e.user.ID, symbol); err != nil {
		return position, e.persistenceFailed("follow", symbol, err)
	}
	return position, nil
}

// Unfollow stops tracking symbol. Unfollowing an absent symbol does nothing.
func (e *Engine) Unfollow(ctx context.Context, symbol string) error {
	symbol = normalize(symbol)

	e.mu.Lock()
	if !e.sim.Unfollow(symbol) {
		e.mu.Unlock()
		return nil
	}
	removed := e.gen.Unfollowed(symbol)
	e.feed.Push(removed)
	view := e.dashboardLocked("")
	e.mu.Unlock()

	e.log.Info("%s unfollowed %s", e.user.Email, symbol)
	e.publish(removed)
	e.notify(view)

	if err := e.store.Delete(ctx, e.user.ID, symbol); err != nil {
		return e.persistenceFailed("unfollow", symbol, err)
	}
	return nil
}

func (e *Engine) AddShares(symbol string, delta int64) (models.Position, error) {
	symbol = normalize(symbol)

	e.mu.Lock()
	position, err := e.sim.AddShares(symbol, delta)
	if err != nil {
		e.mu.Unlock()
		return models.Position{}, err
	}
	view := e.dashboardLocked("")
	e.mu.Unlock()

	e.notify(view)
	return position, nil
}

func (e *Engine) persistenceFailed(op, symbol string, cause error) error {
	err := &PersistenceError{Op: op, Symbol: symbol, Err: cause}
	e.log.Error("Failed to persist %s of %s for %s: %v", op, symbol, e.user.ID, cause)

	e.mu.Lock()
	n := e.gen.SyncFailed(op, symbol)
	e.feed.Push(n)
	view := e.dashboardLocked("")
	e.mu.Unlock()

	e.publish(n)
	e.notify(view)
	return err
}

// Dashboard returns the full view, with holdings narrowed by query. Portfolio
// totals always cover every position.
func (e *Engine) Dashboard(query string) models.Dashboard {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dashboardLocked(query)
}

func (e *Engine) dashboardLocked(query string) models.Dashboard {
	positions := e.sim.Positions()

	holdings := portfolio.Holdings(portfolio.Filter(positions, e.catalog, query), e.catalog)
	allocation := portfolio.Allocation(positions)
	for i := range holdings {
		holdings[i].Allocation = allocation[holdings[i].Symbol]
	}

	movers := portfolio.TopMovers(positions, topMoversCount)
	topMovers := make([]string, 0, len(movers))
	for _, p := range movers {
		topMovers = append(topMovers, p.Symbol)
	}

	return models.Dashboard{
		User:          e.user,
		Snapshot:      portfolio.Compute(positions),
		Holdings:      holdings,
		Available:     e.catalog.Unfollowed(e.sim.Symbols()),
		TopMovers:     topMovers,
		Notifications: e.feed.List(),
		UnreadCount:   e.feed.UnreadCount(),
		Query:         query,
	}
}

func (e *Engine) Positions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Positions()
}

func (e *Engine) Position(symbol string) (models.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Position(normalize(symbol))
}

func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return portfolio.Compute(e.sim.Positions())
}

func (e *Engine) Followed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Symbols()
}

func (e *Engine) Notifications() []*models.Notification {
	return e.feed.List()
}

func (e *Engine) MarkRead(id string) error {
	return e.feed.MarkRead(id)
}

func (e *Engine) MarkAllRead() int {
	return e.feed.MarkAllRead()
}

func (e *Engine) UnreadCount() int {
	return e.feed.UnreadCount()
}

func (e *Engine) User() models.User {
	return e.user
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

func (e *Engine) TickCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// OnUpdate registers fn to receive the unfiltered dashboard after every tick
// and mutation. fn runs on the engine's goroutine and must not block.
func (e *Engine) OnUpdate(fn func(models.Dashboard)) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// SignOut ends the session with the identity provider and stops the tick
// loop. The loop is stopped even when the provider call fails.
func (e *Engine) SignOut(ctx context.Context, provider identity.Provider) error {
	err := provider.SignOut(ctx, e.user.ID)
	e.Stop()
	if err != nil {
		e.log.Error("Sign-out for %s failed: %v", e.user.ID, err)
		return err
	}
	e.log.Info("%s signed out", e.user.Email)
	return nil
}

func (e *Engine) publish(notifications ...*models.Notification) {
	if e.bus == nil {
		return
	}
	for _, n := range notifications {
		e.bus.Publish(n)
	}
}

func (e *Engine) notify(view models.Dashboard) {
	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()

	for _, fn := range e.listeners {
		fn(view)
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
