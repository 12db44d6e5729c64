package approval

import (
	"context"
	"fmt"
	"sync"

	"go-hrflow/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReminderScheduler periodically nudges approvers of stale pending requests.
// It only reads requests; state changes stay with the decision endpoints.
type ReminderScheduler struct {
	service  ApprovalService
	logger   *zap.Logger
	schedule string

	scheduler *cron.Cron
	mu        sync.Mutex
}

func NewReminderScheduler(service ApprovalService, logger *zap.Logger, cfg *config.Config) *ReminderScheduler {
	return &ReminderScheduler{
		service:  service,
		logger:   logger,
		schedule: cfg.ReminderSchedule,
	}
}

func (r *ReminderScheduler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("Reminder scheduler disabled")
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid reminder schedule: %w", err)
	}

	r.scheduler = cron.New()
	if _, err := r.scheduler.AddFunc(r.schedule, r.Run); err != nil {
		return fmt.Errorf("register reminder job: %w", err)
	}
	r.scheduler.Start()
	r.logger.Info("Reminder scheduler started", zap.String("schedule", r.schedule))
	return nil
}

// Run executes one reminder sweep
func (r *ReminderScheduler) Run() {
	count, err := r.service.RemindStale(context.Background())
	if err != nil {
		r.logger.Error("Reminder sweep failed", zap.Error(err))
		return
	}
	r.logger.Info("Reminder sweep finished", zap.Int("reminded", count))
}

func (r *ReminderScheduler) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scheduler == nil {
		return nil
	}
	stopped := r.scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.scheduler = nil
	return nil
}
