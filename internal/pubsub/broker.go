package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"tradeflow/pkg/models"
)

// Subscriber receives ticks for the symbols it asked for. An empty symbol set
// means every symbol.
type Subscriber struct {
	ID       string
	Symbols  map[string]bool
	TickChan chan *models.Tick
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewSubscriber(id string, symbols []string, bufferSize int) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())

	return &Subscriber{
		ID:       id,
		Symbols:  symbolSet(symbols),
		TickChan: make(chan *models.Tick, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Subscriber) Close() {
	s.cancel()
	close(s.TickChan)
}

func (s *Subscriber) IsInterestedIn(symbol string) bool {
	return len(s.Symbols) == 0 || s.Symbols[symbol]
}

// Broker fans simulation ticks out to streaming subscribers. Publish never
// blocks the tick loop; ticks are dropped for slow consumers.
type Broker struct {
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
	tickChan    chan *models.Tick
	stopChan    chan struct{}
	running     bool

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

const (
	DefaultQueueSize  = 10000
	DefaultBufferSize = 100
)

func NewBroker() *Broker {
	return NewBrokerWithQueue(DefaultQueueSize)
}

// NewBrokerWithQueue sets how many published ticks may wait for fan-out
// before Publish starts dropping them.
func NewBrokerWithQueue(size int) *Broker {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		tickChan:    make(chan *models.Tick, size),
		stopChan:    make(chan struct{}),
	}
}

func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.mu.Unlock()

	go b.distributeTicks(ctx)
	return nil
}

func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.running = false
	close(b.stopChan)

	for id, subscriber := range b.subscribers {
		subscriber.Close()
		delete(b.subscribers, id)
	}
}

func (b *Broker) Subscribe(subscriberID string, symbols []string, bufferSize int) *Subscriber {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, exists := b.subscribers[subscriberID]; exists {
		existing.Close()
	}

	subscriber := NewSubscriber(subscriberID, symbols, bufferSize)
	b.subscribers[subscriberID] = subscriber

	return subscriber
}

func (b *Broker) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscriber, exists := b.subscribers[subscriberID]; exists {
		subscriber.Close()
		delete(b.subscribers, subscriberID)
	}
}

func (b *Broker) Publish(tick *models.Tick) {
	select {
	case b.tickChan <- tick:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
	}
}

func (b *Broker) GetSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broker) GetSubscriberCountForSymbol(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subscriber := range b.subscribers {
		if subscriber.IsInterestedIn(symbol) {
			count++
		}
	}
	return count
}

func (b *Broker) distributeTicks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case tick := <-b.tickChan:
			b.fanOutTick(tick)
		}
	}
}

func (b *Broker) fanOutTick(tick *models.Tick) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subscriber := range b.subscribers {
		if !subscriber.IsInterestedIn(tick.Symbol) {
			continue
		}
		select {
		case subscriber.TickChan <- tick:
			b.delivered.Add(1)
		case <-subscriber.ctx.Done():
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broker) UpdateSubscription(subscriberID string, symbols []string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscriber, exists := b.subscribers[subscriberID]
	if !exists {
		return false
	}

	subscriber.Symbols = symbolSet(symbols)
	return true
}

func symbolSet(symbols []string) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		if symbol != "" {
			set[symbol] = true
		}
	}
	return set
}

// BrokerStats counts ticks since the broker was created. Dropped covers both a
// full publish queue and full subscriber buffers.
type BrokerStats struct {
	Running     bool   `json:"running"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
}

func (b *Broker) GetStats() BrokerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BrokerStats{
		Running:     b.running,
		Subscribers: len(b.subscribers),
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
	}
}
