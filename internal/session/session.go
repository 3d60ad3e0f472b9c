package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"StudySync/internal/auth"
	"StudySync/internal/notice"
	"StudySync/internal/notification"
	"StudySync/internal/realtime"
	"StudySync/internal/timetable"
)

// PendingCounter reports the number of users waiting for approval.
type PendingCounter interface {
	PendingCount(ctx context.Context) (int64, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Aggregator *Aggregator
	Notes      *notification.NotificationService
	Reminders  *notification.Reminders
	Users      PendingCounter
	Subscriber realtime.Subscriber
	Interval   time.Duration
	Logger     *zap.Logger
	PopupOpts  []notice.PopupOption
}

// Session owns the timers, subscriptions and popup queue of one signed-in user.
// Stop tears all of them down.
type Session struct {
	deps Deps

	mu     sync.Mutex
	user   *auth.User
	cancel context.CancelFunc
	subs   []*realtime.Subscription
	wg     sync.WaitGroup
	popup  *notice.PopupQueue
	due    []notification.Notification

	duePoll     Poller
	pendingPoll Poller
	pending     atomic.Int64
}

func New(deps Deps) *Session {
	if deps.Interval <= 0 {
		deps.Interval = notification.DefaultPollInterval
	}
	return &Session{deps: deps}
}

// Start binds the session to user. Students get the due-notification poll, the notice popup
// feed and live timetable updates; admins get the pending-approval count poll.
func (s *Session) Start(ctx context.Context, user auth.User) error {
	s.Stop()

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.user = &user
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.deps.Aggregator.SetUser(ctx, &user); err != nil {
		s.deps.Logger.Warn("Failed to load session data", zap.String("user", user.ID), zap.Error(err))
	}

	if user.Role == auth.RoleAdmin {
		s.pendingPoll.Start(ctx, s.deps.Interval, s.countPending)
		return nil
	}

	s.mu.Lock()
	s.popup = notice.NewPopupQueue(user.ID, s.deps.Notes, s.deps.Logger, s.deps.PopupOpts...)
	s.mu.Unlock()

	s.scheduleOnLoad(ctx, user.ID)

	if err := s.subscribeNotices(ctx, user.ID); err != nil {
		s.Stop()
		return err
	}
	if err := s.subscribeTimetable(ctx); err != nil {
		s.Stop()
		return err
	}
	s.duePoll.Start(ctx, s.deps.Interval, s.checkDue)
	return nil
}

// Stop cancels pollers and subscriptions and clears the session user.
func (s *Session) Stop() {
	s.duePoll.Stop()
	s.pendingPoll.Stop()

	s.mu.Lock()
	cancel, subs := s.cancel, s.subs
	s.cancel, s.subs = nil, nil
	s.user = nil
	s.popup = nil
	s.due = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.pending.Store(0)

	if err := s.deps.Aggregator.SetUser(context.Background(), nil); err != nil {
		s.deps.Logger.Warn("Failed to clear session data", zap.Error(err))
	}
}

func (s *Session) User() (auth.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return auth.User{}, false
	}
	return *s.user, true
}

// Popup is the notice dialog queue of a student session, nil otherwise.
func (s *Session) Popup() *notice.PopupQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popup
}

// Due is the result of the latest due-notification poll.
func (s *Session) Due() []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Notification, len(s.due))
	copy(out, s.due)
	return out
}

// PendingCount is the latest pending-approval count of an admin session.
func (s *Session) PendingCount() int64 {
	return s.pending.Load()
}

func (s *Session) Aggregator() *Aggregator {
	return s.deps.Aggregator
}

func (s *Session) scheduleOnLoad(ctx context.Context, userID string) {
	agg := s.deps.Aggregator
	created, err := s.deps.Reminders.ScheduleAll(ctx, userID, agg.Entries(), agg.Tasks())
	if err != nil {
		s.deps.Logger.Warn("Failed to schedule reminders", zap.String("user", userID), zap.Error(err))
	}
	if created > 0 {
		s.deps.Logger.Debug("Reminders scheduled", zap.String("user", userID), zap.Int("created", created))
	}
}

func (s *Session) checkDue(ctx context.Context) {
	u, ok := s.User()
	if !ok {
		return
	}
	if err := s.deps.Aggregator.ReloadIfStale(ctx); err != nil {
		s.deps.Logger.Warn("Failed to refresh timetable", zap.Error(err))
	}
	due, err := s.deps.Reminders.CheckDue(ctx, u.ID)
	if err != nil {
		s.deps.Logger.Warn("Failed to check due notifications", zap.String("user", u.ID), zap.Error(err))
	} else {
		s.mu.Lock()
		s.due = due
		s.mu.Unlock()
	}

	if _, err := s.deps.Reminders.CheckClassSchedule(ctx, u.ID, s.deps.Aggregator.Entries()); err != nil {
		s.deps.Logger.Warn("Failed to check class schedule", zap.String("user", u.ID), zap.Error(err))
	}
}

func (s *Session) countPending(ctx context.Context) {
	n, err := s.deps.Users.PendingCount(ctx)
	if err != nil {
		s.deps.Logger.Warn("Failed to count pending users", zap.Error(err))
		return
	}
	s.pending.Store(n)
}

func (s *Session) listen(ctx context.Context, sub *realtime.Subscription, h realtime.Handlers) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		realtime.Dispatch(ctx, sub, h)
	}()
}

func (s *Session) subscribeNotices(ctx context.Context, userID string) error {
	sub, err := s.deps.Subscriber.Subscribe(ctx, notification.Collection, realtime.Filter{
		Events: []realtime.EventType{realtime.Insert},
		Match:  map[string]interface{}{"user_id": userID, "type": string(notification.TypeNotice)},
	})
	if err != nil {
		s.deps.Logger.Error("Failed to subscribe to notices", zap.String("user", userID), zap.Error(err))
		return err
	}
	s.listen(ctx, sub, realtime.Handlers{
		OnInsert: func(ev realtime.Event) {
			n, err := realtime.Decode[notification.Notification](ev.New)
			if err != nil {
				s.deps.Logger.Warn("Failed to decode notice notification", zap.Error(err))
				return
			}
			if popup := s.Popup(); popup != nil {
				popup.Offer(n)
			}
		},
	})
	return nil
}

func (s *Session) subscribeTimetable(ctx context.Context) error {
	sub, err := s.deps.Subscriber.Subscribe(ctx, timetable.Collection, realtime.Filter{})
	if err != nil {
		s.deps.Logger.Error("Failed to subscribe to timetable", zap.Error(err))
		return err
	}
	// The due poll picks the change up on its next tick.
	stale := func(realtime.Event) { s.deps.Aggregator.MarkTimetableStale() }
	s.listen(ctx, sub, realtime.Handlers{OnInsert: stale, OnUpdate: stale, OnDelete: stale})
	return nil
}
