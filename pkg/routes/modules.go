package pkg

import (
	"context"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/auth"
	"StudySync/internal/clock"
	"StudySync/internal/config"
	"StudySync/internal/event"
	"StudySync/internal/notice"
	"StudySync/internal/notification"
	"StudySync/internal/realtime"
	"StudySync/internal/task"
	"StudySync/internal/timetable"
	"StudySync/pkg/middleware"
)

// Modules assembles the application for s. The store driver decides which repositories
// and which change feed are provided.
func Modules(s *config.Settings) fx.Option {
	store := MemoryStoreModule
	if s.StoreDriver == config.DriverMongo {
		store = MongoStoreModule
	}
	return fx.Options(
		fx.Supply(s),
		CoreModules,
		store,
		ServiceModules,
		EchoModules,
	)
}

var CoreModules = fx.Module("core",
	fx.Provide(
		config.NewLogger,
		func() clock.Clock { return clock.Real{} },
		apperr.NewValidator,
		newTokenIssuer,
		config.NewRedisClient,
		newMailer,
		newSyncStore,
		newLedger,
	),
)

var MemoryStoreModule = fx.Module("memory-store",
	fx.Provide(
		realtime.NewBroker,
		func(b *realtime.Broker) realtime.Publisher { return b },
		func(b *realtime.Broker) realtime.Subscriber { return b },
		fx.Annotate(auth.NewMemoryUserRepository, fx.As(new(auth.Repository))),
		fx.Annotate(task.NewMemoryRepository, fx.As(new(task.Repository))),
		fx.Annotate(timetable.NewMemoryRepository, fx.As(new(timetable.Repository))),
		fx.Annotate(notification.NewMemoryRepository, fx.As(new(notification.Repository))),
		fx.Annotate(notification.NewMemorySettingsRepository, fx.As(new(notification.SettingsRepository))),
		fx.Annotate(notice.NewMemoryRepository, fx.As(new(notice.Repository))),
		fx.Annotate(event.NewMemoryRepository, fx.As(new(event.Repository))),
	),
	fx.Invoke(func(logger *zap.Logger) {
		logger.Warn("Using in-memory store; data is lost on exit")
	}),
)

var MongoStoreModule = fx.Module("mongo-store",
	fx.Provide(
		config.NewMongoDBClient,
		fx.Annotate(realtime.NewMongoSubscriber, fx.As(new(realtime.Subscriber))),
		fx.Annotate(auth.NewUserRepository, fx.As(new(auth.Repository))),
		fx.Annotate(task.NewMongoRepository, fx.As(new(task.Repository))),
		fx.Annotate(timetable.NewMongoRepository, fx.As(new(timetable.Repository))),
		fx.Annotate(notification.NewNotificationRepository, fx.As(new(notification.Repository))),
		fx.Annotate(notification.NewMongoSettingsRepository, fx.As(new(notification.SettingsRepository))),
		fx.Annotate(notice.NewMongoRepository, fx.As(new(notice.Repository))),
		fx.Annotate(event.NewMongoRepository, fx.As(new(event.Repository))),
	),
	fx.Invoke(func(db *mongo.Database, logger *zap.Logger) error {
		return config.EnsureIndexes(context.Background(), db, config.StoreIndexes, logger)
	}),
)

var ServiceModules = fx.Module("services",
	fx.Provide(
		newNotificationService,
		newReminders,
		newUserService,
		newTaskService,
		newTimetableController,
		newNoticeService,
		event.NewService,
		newScheduler,
	),
	fx.Invoke(func(s *notification.NotificationScheduler, lc fx.Lifecycle) {
		s.StartScheduler(lc)
	}),
	fx.Invoke(ensureAdmin),
)

var EchoModules = fx.Module("echo",
	fx.Provide(
		NewEchoServer,
		newEnforcer,
		auth.NewAuthHandler,
		task.NewHandler,
		newTimetableHandler,
		newNotificationHandler,
		notification.NewStreamHandler,
		notice.NewHandler,
		event.NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

func newTokenIssuer(s *config.Settings, clk clock.Clock) *auth.TokenIssuer {
	return auth.NewTokenIssuer([]byte(s.JWTKey), s.JWTTTL, clk)
}

func newMailer(s *config.Settings, logger *zap.Logger) notification.Mailer {
	m := config.NewMailer(s, logger)
	if m == nil {
		return nil
	}
	return m
}

func newSyncStore(lc fx.Lifecycle, s *config.Settings, rdb *redis.Client, logger *zap.Logger) (timetable.SyncStore, error) {
	switch s.SyncStore {
	case "redis":
		return timetable.NewRedisSyncStore(rdb), nil
	case "memory":
		return timetable.NewMemorySyncStore(), nil
	}
	db, err := config.OpenBolt(lc, s, logger)
	if err != nil {
		return nil, err
	}
	return timetable.NewBoltSyncStore(db)
}

// newLedger prefers Redis so several instances share one dedup record.
func newLedger(s *config.Settings, rdb *redis.Client, clk clock.Clock) notification.Ledger {
	switch {
	case !s.NotifyDedup:
		return nil
	case rdb != nil:
		return notification.NewRedisLedger(rdb)
	}
	return notification.NewMemoryLedger(clk)
}

func newNotificationService(repo notification.Repository, settings notification.SettingsRepository, mailer notification.Mailer, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *notification.NotificationService {
	return notification.NewNotificationService(repo, settings, mailer, clk, v, logger)
}

func newReminders(notes *notification.NotificationService, ledger notification.Ledger, clk clock.Clock, logger *zap.Logger) *notification.Reminders {
	return notification.NewReminders(notes, ledger, clk, logger)
}

func newUserService(repo auth.Repository, tokens *auth.TokenIssuer, notes *notification.NotificationService, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *auth.UserService {
	return auth.NewUserService(repo, tokens, notes, clk, v, logger)
}

func newTaskService(repo task.Repository, notes *notification.NotificationService, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *task.Service {
	return task.NewService(repo, notes, clk, v, logger)
}

func newTimetableController(repo timetable.Repository, store timetable.SyncStore, s *config.Settings, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *timetable.Controller {
	return timetable.NewController(repo, timetable.NewCache(clk, s.TimetableCacheTTL), store, clk, v, logger)
}

func newNoticeService(repo notice.Repository, users *auth.UserService, notes *notification.NotificationService, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *notice.Service {
	return notice.NewService(repo, users, notes, clk, v, logger)
}

func newScheduler(reminders *notification.Reminders, notes *notification.NotificationService, users *auth.UserService, tt *timetable.Controller, s *config.Settings, logger *zap.Logger) *notification.NotificationScheduler {
	return notification.NewNotificationScheduler(reminders, notes, users, tt, s.PollInterval, logger)
}

func newEnforcer(s *config.Settings, logger *zap.Logger) (*casbin.Enforcer, error) {
	return middleware.NewEnforcer(s.RBACPolicy, logger)
}

func newTimetableHandler(c *timetable.Controller, s *config.Settings) *timetable.Handler {
	return timetable.NewHandler(c, s.TimetablePageSize)
}

func newNotificationHandler(notes *notification.NotificationService, reminders *notification.Reminders, tt *timetable.Controller, tasks *task.Service) *notification.NotificationHandler {
	return notification.NewNotificationHandler(notes, reminders, tt, tasks)
}

// ensureAdmin creates the bootstrap admin account on start when ADMIN_EMAIL is set.
func ensureAdmin(lc fx.Lifecycle, s *config.Settings, users *auth.UserService, logger *zap.Logger) {
	if s.AdminEmail == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := users.EnsureAdmin(ctx, s.AdminEmail, s.AdminPassword); err != nil {
				logger.Error("Failed to ensure admin account", zap.String("email", s.AdminEmail), zap.Error(err))
				return err
			}
			return nil
		},
	})
}
