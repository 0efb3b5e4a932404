package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Category int

const (
	CategoryUnspecified Category = iota
	CategoryPriceAlert
	CategoryPortfolio
	CategorySystem
)

func (c Category) String() string {
	switch c {
	case CategoryPriceAlert:
		return "price_alert"
	case CategoryPortfolio:
		return "portfolio"
	case CategorySystem:
		return "system"
	default:
		return "unknown"
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(name string) Category {
	switch name {
	case "price_alert":
		return CategoryPriceAlert
	case "portfolio":
		return CategoryPortfolio
	case "system":
		return CategorySystem
	default:
		return CategoryUnspecified
	}
}

// MarshalText lets the category travel as its name in JSON payloads.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	*c = ParseCategory(string(text))
	return nil
}

type Notification struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

func NewNotification(category Category, title, message string, now time.Time) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		Category:  category,
		Title:     title,
		Message:   message,
		CreatedAt: now,
	}
}

// Age renders how long ago the notification was created, relative to now.
func (n *Notification) Age(now time.Time) string {
	minutes := int(now.Sub(n.CreatedAt) / time.Minute)
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return n.CreatedAt.Format("2006-01-02")
	}
}
