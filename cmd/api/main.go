package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/internal/database"
	"go-hrflow/internal/features/approval"
	"go-hrflow/internal/features/audit"
	"go-hrflow/internal/features/forget_scan"
	"go-hrflow/internal/features/leave"
	"go-hrflow/internal/features/notification"
	"go-hrflow/internal/features/profile"
	"go-hrflow/internal/features/realtime"
	"go-hrflow/internal/features/swap_day"
	"go-hrflow/internal/features/system"
	"go-hrflow/internal/i18n"
	"go-hrflow/internal/logger"
	"go-hrflow/internal/middleware"
	"go-hrflow/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		// request values reach goroutines that outlive the handler
		Immutable: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	app.Use(middleware.LocaleMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, log *zap.Logger) {
	log.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		log.Debug("Setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				log.Info("HTTP server listening", zap.String("addr", port))
				if err := app.Listen(port); err != nil {
					log.Fatal("Server failed to start", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes creates the indexes the services rely on. The request index
// backs duplicate detection, so startup fails without it.
func InitializeIndexes(lc fx.Lifecycle, requestRepo approval.Repository, profileRepo profile.ProfileRepository, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := requestRepo.EnsureIndexes(ctx); err != nil {
				return err
			}
			if err := profileRepo.EnsureIndexes(ctx); err != nil {
				log.Warn("Failed to ensure profile indexes", zap.Error(err))
			}
			return nil
		},
	})
}

// ManageBackgroundWork starts the reminder job and drains side effects on shutdown
func ManageBackgroundWork(lc fx.Lifecycle, reminders *approval.ReminderScheduler, service approval.ApprovalService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return reminders.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			err := reminders.Stop(ctx)

			drained := make(chan struct{})
			go func() {
				service.Wait()
				close(drained)
			}()
			select {
			case <-drained:
			case <-ctx.Done():
			}
			return err
		},
	})
}

// @title           HRFlow Approval API
// @version         1.0
// @description     Leave, forget-scan and swap-day requests routed through manager, GM and COO approval chains.

// @host            localhost:8000
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// Initialize Repository
			audit.NewAuditRepository,
			profile.NewProfileRepository,
			notification.NewNotificationRepository,
			approval.NewApprovalRepository,

			// Initialize Service
			approval.NewModeResolver,
			audit.NewAuditService,
			profile.NewProfileService,
			notification.NewNotificationService,
			realtime.NewHub,
			approval.NewDispatcher,
			approval.NewApprovalService,
			approval.NewReminderScheduler,

			// Collaborator views of the concrete services
			func(r profile.ProfileRepository) audit.UserFinder { return r },
			func(s profile.ProfileService) approval.ProfileSource { return s },
			func(s profile.ProfileService) approval.Directory { return s },
			func(s profile.ProfileService) notification.LocaleSource { return s },
			func(s notification.NotificationService) approval.Notifier { return s },
			func(h *realtime.Hub) approval.Broadcaster { return h },
			func() middleware.ClaimsPredicate { return approval.IsAdminClaims },

			// Initialize Controller
			audit.NewAuditController,
			profile.NewProfileController,
			notification.NewNotificationController,
			approval.NewReportController,
			realtime.NewWebSocketController,
			system.NewDebugController,

			// Routes
			AsRoute(leave.NewLeaveApi),
			AsRoute(forget_scan.NewForgetScanApi),
			AsRoute(swap_day.NewSwapDayApi),
			AsRoute(approval.NewReportApi),
			AsRoute(profile.NewProfileApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(realtime.NewWebSocketApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) error {
				utils.SetSecret(cfg.JWTSecret)
				return i18n.Init(cfg.DefaultLocale)
			},
			InitializeIndexes,
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			ManageBackgroundWork,
		),
	)

	if err := app.Err(); err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	app.Run()
}
