package alerts

import (
	"errors"
	"sync"

	"tradeflow/pkg/models"
)

const DefaultCapacity = 10

var ErrNotificationNotFound = errors.New("notification not found")

// Feed keeps the most recent notifications, newest first. Once full, each
// push silently evicts the oldest entry.
type Feed struct {
	items    []*models.Notification
	capacity int
	mu       sync.RWMutex
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		items:    make([]*models.Notification, 0, capacity),
		capacity: capacity,
	}
}

// Push prepends a copy of n and returns the evicted notification, if any.
// The caller keeps ownership of n; read flags only change on the feed's copy.
func (f *Feed) Push(n *models.Notification) *models.Notification {
	stored := *n


	f.mu.Lock()
	defer f.mu.Unlock()

	var evicted *models.Notification
	if len(f.items) == f.capacity {
		evicted = f.items[len(f.items)-1]
		f.items = f.items[:len(f.items)-1]
	}

	f.items = append(f.items, nil)
	copy(f.items[1:], f.items)
	f.items[0] = &stored

	return evicted
}

// List returns copies of the retained notifications, newest first.
func (f *Feed) List() []*models.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*models.Notification, 0, len(f.items))
	for _, n := range f.items {
		nCopy := *n
		out = append(out, &nCopy)
	}
	return out
}

func (f *Feed) MarkRead(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range f.items {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

// MarkAllRead flags every retained notification as read and returns how many
// changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	changed := 0
	for _, n := range f.items {
		if !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed
}

func (f *Feed) UnreadCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	count := 0
	for _, n := range f.items {
		if !n.Read {
			count++
		}
	}
	return count
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}
