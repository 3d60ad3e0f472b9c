package notice

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"StudySync/internal/notification"
)

// PopupCloseDelay separates closing one notice dialog from opening the next.
const PopupCloseDelay = 500 * time.Millisecond

// Reader marks a notification read on behalf of its owner.
type Reader interface {
	MarkRead(ctx context.Context, userID, id string) error
}

// PopupQueue shows at most one notice at a time, FIFO, each gated on acknowledgement.
// The queue lives in memory only; undisplayed notices stay fetchable as unread notifications.
type PopupQueue struct {
	userID    string
	reader    Reader
	delay     time.Duration
	afterFunc func(time.Duration, func())
	onShow    func(notification.Notification)
	logger    *zap.Logger

	mu      sync.Mutex
	current *notification.Notification
	closing bool
	queue   []notification.Notification
}

type PopupOption func(*PopupQueue)

// WithAfterFunc replaces time.AfterFunc, mainly for tests.
func WithAfterFunc(fn func(time.Duration, func())) PopupOption {
	return func(q *PopupQueue) { q.afterFunc = fn }
}

// WithOnShow is called, outside the queue lock, whenever a notice becomes the open dialog.
func WithOnShow(fn func(notification.Notification)) PopupOption {
	return func(q *PopupQueue) { q.onShow = fn }
}

func NewPopupQueue(userID string, reader Reader, logger *zap.Logger, opts ...PopupOption) *PopupQueue {
	q := &PopupQueue{
		userID: userID,
		reader: reader,
		delay:  PopupCloseDelay,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Offer shows n immediately when no dialog is open, otherwise queues it.
// Notifications that are not notices, or are already known, are ignored.
func (q *PopupQueue) Offer(n notification.Notification) {
	if n.Type != notification.TypeNotice {
		return
	}
	q.mu.Lock()
	if q.known(n.ID) {
		q.mu.Unlock()
		return
	}
	if q.current == nil && !q.closing {
		q.current = &n
		q.mu.Unlock()
		q.show(n)
		return
	}
	q.queue = append(q.queue, n)
	q.mu.Unlock()
}

func (q *PopupQueue) known(id string) bool {
	if q.current != nil && q.current.ID == id {
		return true
	}
	for _, n := range q.queue {
		if n.ID == id {
			return true
		}
	}
	return false
}

func (q *PopupQueue) show(n notification.Notification) {
	if q.onShow != nil {
		q.onShow(n)
	}
}

// Current is the open dialog, if any.
func (q *PopupQueue) Current() (notification.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return notification.Notification{}, false
	}
	return *q.current, true
}

// Pending is the number of queued, not yet shown notices.
func (q *PopupQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Acknowledge marks the open notice read and closes it; the next queued notice opens after
// PopupCloseDelay. When marking read fails the dialog stays open and the error is returned.
func (q *PopupQueue) Acknowledge(ctx context.Context) error {
	q.mu.Lock()
	if q.current == nil || q.closing {
		q.mu.Unlock()
		return nil
	}
	cur := *q.current
	q.mu.Unlock()

	if err := q.reader.MarkRead(ctx, q.userID, cur.ID); err != nil {
		q.logger.Warn("Failed to acknowledge notice", zap.String("notification", cur.ID), zap.Error(err))
		return err
	}

	q.mu.Lock()
	q.current = nil
	q.closing = true
	q.mu.Unlock()
	q.afterFunc(q.delay, q.next)
	return nil
}

func (q *PopupQueue) next() {
	q.mu.Lock()
	q.closing = false
	if len(q.queue) == 0 {
		q.mu.Unlock()
		return
	}
	n := q.queue[0]
	q.queue = q.queue[1:]
	q.current = &n
	q.mu.Unlock()
	q.show(n)
}

// Heading strips the broadcast prefix for display.
func Heading(n notification.Notification) string {
	return strings.TrimPrefix(n.Title, "NOTICE: ")
}

// HighPriority reports whether a notice notification reads as high priority.
func HighPriority(n notification.Notification) bool {
	return strings.Contains(strings.ToLower(n.Title), "high") ||
		strings.Contains(strings.ToLower(n.Message), "high priority")
}
