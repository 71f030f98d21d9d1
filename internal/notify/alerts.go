package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

const DefaultDuration = 5 * time.Second

type Alert struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Type     Type          `json:"type"`
	Duration time.Duration `json:"duration"`
}

// SessionExpired is the alert raised when the backend rejects the session.
func SessionExpired() Alert {
	return Alert{
		Title:    "Session Expired",
		Message:  "Your session has expired. Please log in again.",
		Type:     TypeError,
		Duration: DefaultDuration,
	}
}

type EventKind string

const (
	EventShown   EventKind = "shown"
	EventRemoved EventKind = "removed"
)

type Event struct {
	Kind  EventKind
	Alert Alert
}

// Center holds the visible alerts. Alerts with a positive duration are
// removed automatically once it elapses.
type Center struct {
	mu     sync.Mutex
	alerts []Alert
	timers map[string]*time.Timer
	subs   map[int]chan Event
	nextID int
}

func NewCenter() *Center {
	return &Center{
		timers: make(map[string]*time.Timer),
		subs:   make(map[int]chan Event),
	}
}

func (c *Center) Show(alert Alert) string {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Type == "" {
		alert.Type = TypeInfo
	}
	c.mu.Lock()
	c.alerts = append(c.alerts, alert)
	if alert.Duration > 0 {
		id := alert.ID
		c.timers[id] = time.AfterFunc(alert.Duration, func() { c.Remove(id) })
	}
	c.publishLocked(Event{Kind: EventShown, Alert: alert})
	c.mu.Unlock()
	return alert.ID
}

func (c *Center) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(id)
}

func (c *Center) removeLocked(id string) bool {
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, a := range c.alerts {
		if a.ID == id {
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			c.publishLocked(Event{Kind: EventRemoved, Alert: a})
			return true
		}
	}
	return false
}

func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.alerts))
	for _, a := range c.alerts {
		ids = append(ids, a.ID)
	}
	for _, id := range ids {
		c.removeLocked(id)
	}
}

func (c *Center) List() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

// Subscribe returns a channel of alert events. Slow subscribers drop events
// rather than block Show.
func (c *Center) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Center) publishLocked(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
