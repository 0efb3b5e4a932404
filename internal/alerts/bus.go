package alerts

import (
	"context"
	"sync"

	"tradeflow/pkg/models"
)

// Subscriber receives notifications of the categories it asked for, or of
// every category when it named none.
type Subscriber struct {
	ID               string
	Categories       map[models.Category]bool
	NotificationChan chan *models.Notification
	ctx              context.Context
	cancel           context.CancelFunc
}

func NewSubscriber(id string, bufferSize int, categories ...models.Category) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())

	set := make(map[models.Category]bool, len(categories))
	for _, c := range categories {
		if c != models.CategoryUnspecified {
			set[c] = true
		}
	}

	return &Subscriber{
		ID:               id,
		Categories:       set,
		NotificationChan: make(chan *models.Notification, bufferSize),
		ctx:              ctx,
		cancel:           cancel,
	}
}

func (s *Subscriber) Wants(c models.Category) bool {
	return len(s.Categories) == 0 || s.Categories[c]
}

func (s *Subscriber) Close() {
	s.cancel()
	close(s.NotificationChan)
}

// Bus fans new notifications out to streaming subscribers. Publishing never
// blocks; slow subscribers miss notifications.
type Bus struct {
	subscribers      map[string]*Subscriber
	mu               sync.RWMutex
	notificationChan chan *models.Notification
	stopChan         chan struct{}
	running          bool
}

func NewBus() *Bus {
	return &Bus{
		subscribers:      make(map[string]*Subscriber),
		notificationChan: make(chan *models.Notification, 1000),
		stopChan:         make(chan struct{}),
	}
}

func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.mu.Unlock()

	go b.distribute(ctx)
	return nil
}

func (b *Bus) Stop() {
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

func (b *Bus) Subscribe(subscriberID string, bufferSize int, categories ...models.Category) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, exists := b.subscribers[subscriberID]; exists {
		existing.Close()
	}

	subscriber := NewSubscriber(subscriberID, bufferSize, categories...)
	b.subscribers[subscriberID] = subscriber

	return subscriber
}

func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscriber, exists := b.subscribers[subscriberID]; exists {
		subscriber.Close()
		delete(b.subscribers, subscriberID)
	}
}

func (b *Bus) Publish(n *models.Notification) {
	select {
	case b.notificationChan <- n:
	default:
	}
}

func (b *Bus) GetSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) distribute(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case n := <-b.notificationChan:
			b.fanOut(n)
		}
	}
}

func (b *Bus) fanOut(n *models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subscriber := range b.subscribers {
		if !subscriber.Wants(n.Category) {
			continue
		}
		nCopy := *n
		select {
		case subscriber.NotificationChan <- &nCopy:
		case <-subscriber.ctx.Done():
		default:
		}
	}
}

func (b *Bus) GetStats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BusStats{
		Running:         b.running,
		SubscriberCount: len(b.subscribers),
		Queued:          len(b.notificationChan),
	}
}

type BusStats struct {
	Running         bool `json:"running"`
	SubscriberCount int  `json:"subscriber_count"`
	Queued          int  `json:"queued"`
}
