package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"go-hrflow/internal/config"
	"go-hrflow/internal/database"
	"go-hrflow/internal/features/approval"
	"go-hrflow/internal/features/audit"
	"go-hrflow/internal/features/profile"
	"go-hrflow/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// seedProfile is one entry of the profiles data file
type seedProfile struct {
	EmployeeID string `json:"employee_id"`
	profile.ProfileInput
}

var profilesPath = flag.String("profiles", "cmd/seed/data/profiles.json", "employee profiles to upsert")

// Seed upserts employee profiles and their approval chains from JSON
func Seed(
	lc fx.Lifecycle,
	profileRepo profile.ProfileRepository,
	profileService profile.ProfileService,
	requestRepo approval.Repository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx := context.Background()
				logger.Info("Starting profile seeding", zap.String("path", *profilesPath))

				if err := requestRepo.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure request indexes", zap.Error(err))
					return
				}
				if err := profileRepo.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure profile indexes", zap.Error(err))
					return
				}

				b, err := os.ReadFile(*profilesPath)
				if err != nil {
					logger.Error("Failed to read profiles", zap.Error(err))
					return
				}
				var entries []seedProfile
				if err := json.Unmarshal(b, &entries); err != nil {
					logger.Error("Failed to parse profiles", zap.Error(err))
					return
				}

				seeded := 0
				for _, entry := range entries {
					p, err := profileService.Upsert(ctx, entry.EmployeeID, entry.ProfileInput, "seed")
					if err != nil {
						logger.Warn("Skipping profile",
							zap.String("employee_id", entry.EmployeeID),
							zap.String("login_id", entry.LoginID),
							zap.Error(err))
						continue
					}
					seeded++
					logger.Info("Profile seeded",
						zap.String("employee_id", p.EmployeeID),
						zap.String("login_id", p.LoginID),
						zap.String("approval_mode", p.ApprovalMode))
				}

				logger.Info("Profile seeding finished", zap.Int("seeded", seeded), zap.Int("total", len(entries)))
			}()
			return nil
		},
	})
}

func main() {
	flag.Parse()

	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			profile.NewProfileRepository,
			approval.NewApprovalRepository,
			approval.NewModeResolver,
			func(r profile.ProfileRepository) audit.UserFinder { return r },
			audit.NewAuditRepository,
			audit.NewAuditService,
			profile.NewProfileService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	<-app.Done()
}
