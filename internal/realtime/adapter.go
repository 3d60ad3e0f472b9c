package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// EventType is the kind of row change carried by an Event.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Event is one change on a table. New is absent for deletes; Old holds at least the document key.
type Event struct {
	Table string
	Type  EventType
	New   bson.Raw
	Old   bson.Raw
}

// Filter narrows a subscription. An empty Events list matches every event type;
// Match compares top-level fields of the changed document for equality.
type Filter struct {
	Events []EventType
	Match  map[string]interface{}
}

func (f Filter) acceptsType(t EventType) bool {
	if len(f.Events) == 0 {
		return true
	}
	for _, e := range f.Events {
		if e == t {
			return true
		}
	}
	return false
}

// Subscriber opens change feeds.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error)
}

// Publisher pushes changes into an in-process feed.
type Publisher interface {
	Publish(table string, typ EventType, newDoc, oldDoc interface{})
}

// Subscription is a live change feed. The Events channel is closed after Unsubscribe
// or when the context passed to Subscribe is done.
type Subscription struct {
	ID     string
	Table  string
	events chan Event
	stop   func()
	once   sync.Once
}

func newSubscription(table string, buffer int) *Subscription {
	return &Subscription{
		ID:     uuid.NewString(),
		Table:  table,
		events: make(chan Event, buffer),
	}
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Unsubscribe stops the feed. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// Decode unmarshals a raw change document into T.
func Decode[T any](raw bson.Raw) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, ErrEmptyDocument
	}
	err := bson.Unmarshal(raw, &out)
	return out, err
}

// Handlers are typed callbacks for Dispatch. Nil handlers are skipped.
type Handlers struct {
	OnInsert func(Event)
	OnUpdate func(Event)
	OnDelete func(Event)
}

// Dispatch drains sub into h until the feed closes or ctx is done.
func Dispatch(ctx context.Context, sub *Subscription, h Handlers) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case Insert:
				if h.OnInsert != nil {
					h.OnInsert(ev)
				}
			case Update:
				if h.OnUpdate != nil {
					h.OnUpdate(ev)
				}
			case Delete:
				if h.OnDelete != nil {
					h.OnDelete(ev)
				}
			}
		}
	}
}
