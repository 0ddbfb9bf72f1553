// Package notice queues the short user-facing messages (toasts) that views
// show once and then forget.
package notice

import (
	"sync"
	"time"
)

// Level of a notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one toast message
type Notice struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// defaultCapacity bounds the queue; the oldest notices are dropped first
const defaultCapacity = 32

// Center collects notices until the next view drains them
type Center struct {
	mu       sync.Mutex
	pending  []Notice
	capacity int
}

// NewCenter creates an empty notice center
func NewCenter() *Center {
	return &Center{capacity: defaultCapacity}
}

// Push queues a notice. Empty messages are ignored.
func (c *Center) Push(level Level, message string) {
	if message == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, Notice{Level: level, Message: message, CreatedAt: time.Now()})
	if over := len(c.pending) - c.capacity; over > 0 {
		c.pending = append([]Notice(nil), c.pending[over:]...)
	}
}

func (c *Center) Info(message string)    { c.Push(LevelInfo, message) }
func (c *Center) Success(message string) { c.Push(LevelSuccess, message) }
func (c *Center) Warning(message string) { c.Push(LevelWarning, message) }
func (c *Center) Error(message string)   { c.Push(LevelError, message) }

// Drain returns the queued notices in push order and empties the queue
func (c *Center) Drain() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// Len returns the number of queued notices
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
