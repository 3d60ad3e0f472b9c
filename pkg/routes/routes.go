package pkg

import (
	"github.com/casbin/casbin/v2"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"StudySync/internal/auth"
	"StudySync/internal/event"
	"StudySync/internal/notice"
	"StudySync/internal/notification"
	"StudySync/internal/task"
	"StudySync/internal/timetable"
	"StudySync/pkg/middleware"
)

type RouteParams struct {
	fx.In

	Echo          *echo.Echo
	Logger        *zap.Logger
	Tokens        *auth.TokenIssuer
	Enforcer      *casbin.Enforcer
	Users         *auth.UserService
	Auth          *auth.AuthHandler
	Tasks         *task.Handler
	Timetable     *timetable.Handler
	Notifications *notification.NotificationHandler
	Stream        *notification.StreamHandler
	Notices       *notice.Handler
	Events        *event.Handler
}

func RegisterRoutes(p RouteParams) {
	e := p.Echo
	jwt := middleware.JWT(p.Tokens, p.Logger)

	e.POST("/register", p.Auth.Register)
	e.POST("/login", p.Auth.Login)
	// Pending users may read their own profile to learn their state.
	e.GET("/api/profile", p.Auth.Profile, jwt)

	protected := e.Group("/api", jwt, middleware.RequireApproved(p.Users), middleware.Casbin(p.Enforcer, p.Logger))

	protected.GET("/tasks", p.Tasks.List)
	protected.POST("/tasks", p.Tasks.Create)
	protected.PUT("/tasks/:id", p.Tasks.Update)
	protected.PATCH("/tasks/:id/complete", p.Tasks.Complete)
	protected.DELETE("/tasks/:id", p.Tasks.Delete)

	protected.GET("/timetable", p.Timetable.List)
	protected.GET("/timetable/last-sync", p.Timetable.LastSync)

	protected.GET("/notifications", p.Notifications.List)
	protected.GET("/notifications/archived", p.Notifications.Archived)
	protected.GET("/notifications/unread-count", p.Notifications.UnreadCount)
	protected.GET("/notifications/due", p.Notifications.Due)
	protected.GET("/notifications/stream", p.Stream.Stream)
	protected.POST("/notifications/schedule", p.Notifications.Schedule)
	protected.PUT("/notifications/read-all", p.Notifications.MarkAllRead)
	protected.PUT("/notifications/:id/read", p.Notifications.MarkRead)
	protected.PUT("/notifications/:id/archive", p.Notifications.Archive)
	protected.GET("/notifications/settings", p.Notifications.GetSettings)
	protected.PUT("/notifications/settings", p.Notifications.UpdateSettings)

	protected.GET("/notices", p.Notices.Active)
	protected.GET("/events", p.Events.Events)
	protected.GET("/classes", p.Events.Classes)

	admin := protected.Group("/admin")

	admin.POST("/timetable/upload", p.Timetable.Upload)
	admin.GET("/timetable/export", p.Timetable.Export)
	admin.POST("/timetable/sync", p.Timetable.Sync)
	admin.POST("/timetable", p.Timetable.Create)
	admin.PUT("/timetable/:id", p.Timetable.Update)
	admin.DELETE("/timetable/:id", p.Timetable.Delete)

	admin.GET("/notices", p.Notices.List)
	admin.POST("/notices", p.Notices.Create)
	admin.PUT("/notices/:id", p.Notices.Update)
	admin.DELETE("/notices/:id", p.Notices.Delete)

	admin.GET("/users/pending", p.Auth.PendingUsers)
	admin.GET("/users/pending/count", p.Auth.PendingCount)
	admin.PUT("/users/:id/approve", p.Auth.Approve)
	admin.PUT("/users/:id/deny", p.Auth.Deny)

	admin.GET("/students", p.Auth.Students)
	admin.POST("/students", p.Auth.CreateStudent)
	admin.PUT("/students/:id", p.Auth.UpdateStudent)
	admin.DELETE("/students/:id", p.Auth.DeleteStudent)

	admin.POST("/events", p.Events.CreateEvent)
	admin.PUT("/events/:id", p.Events.UpdateEvent)
	admin.DELETE("/events/:id", p.Events.DeleteEvent)
	admin.POST("/classes", p.Events.CreateClass)
}
