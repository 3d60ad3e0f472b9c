package realtime

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
)

var ErrEmptyDocument = errors.New("realtime: empty document")

const subscriptionBuffer = 64

// Broker is an in-process change feed. Memory-backed repositories publish to it.
// Slow subscribers lose events once their buffer is full.
type Broker struct {
	mu      sync.RWMutex
	subs    map[string]*brokerSub
	dropped atomic.Int64
}

type brokerSub struct {
	sub    *Subscription
	filter Filter
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]*brokerSub)}
}

func (b *Broker) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := newSubscription(table, subscriptionBuffer)
	sub.stop = func() {
		b.mu.Lock()
		delete(b.subs, sub.ID)
		close(sub.events)
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.subs[sub.ID] = &brokerSub{sub: sub, filter: filter}
	b.mu.Unlock()

	context.AfterFunc(ctx, sub.Unsubscribe)
	return sub, nil
}

func (b *Broker) Publish(table string, typ EventType, newDoc, oldDoc interface{}) {
	ev := Event{Table: table, Type: typ}
	if newDoc != nil {
		raw, err := bson.Marshal(newDoc)
		if err != nil {
			return
		}
		ev.New = raw
	}
	if oldDoc != nil {
		raw, err := bson.Marshal(oldDoc)
		if err != nil {
			return
		}
		ev.Old = raw
	}

	doc := ev.New
	if len(doc) == 0 {
		doc = ev.Old
	}
	var fields bson.M
	if len(doc) > 0 {
		_ = bson.Unmarshal(doc, &fields)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.sub.Table != table || !s.filter.acceptsType(typ) || !matches(fields, s.filter.Match) {
			continue
		}
		select {
		case s.sub.events <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped is the number of events discarded because a subscriber was full.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Broker) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func matches(fields bson.M, want map[string]interface{}) bool {
	for k, v := range want {
		got, ok := fields[k]
		if !ok || !sameValue(got, v) {
			return false
		}
	}
	return true
}

func sameValue(got, want interface{}) bool {
	gv, wv := reflect.ValueOf(got), reflect.ValueOf(want)
	if gv.Kind() == reflect.String && wv.Kind() == reflect.String {
		return gv.String() == wv.String()
	}
	return reflect.DeepEqual(got, want)
}
