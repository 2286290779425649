// Package main provides the LeadFlow reminder daemon. It periodically scans
// for approval gates that have been awaiting a human decision for too long
// and publishes reminder events for downstream notification channels.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vantagecrm/leadflow/pkg/eventbus"
	"github.com/vantagecrm/leadflow/pkg/events"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

type Reminder struct {
	id          string
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	remindAfter time.Duration
	logger      *slog.Logger
	cron        *cron.Cron
}

func NewReminder(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventPublisher,
	remindAfter time.Duration,
	logger *slog.Logger,
) *Reminder {
	return &Reminder{
		id:          id,
		persistence: p,
		eventBus:    eventBus,
		remindAfter: remindAfter,
		logger:      logger.With("module", "reminder"),
	}
}

// Start schedules the sweep and blocks until the context is cancelled or a
// termination signal arrives.
func (r *Reminder) Start(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return err
	}

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.Sweep(ctx); err != nil {
			r.logger.Error("Gate sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	r.logger.Info("Starting reminder daemon", "schedule", schedule, "remind_after", r.remindAfter)
	r.cron.Start()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		r.logger.Info("Received signal, shutting down", "signal", sig)
	case <-ctx.Done():
		r.logger.Info("Context cancelled, shutting down")
	}

	stopCtx := r.cron.Stop()
	<-stopCtx.Done()

	return nil
}

// Sweep publishes a reminder for every gate that has been awaiting a
// decision longer than the configured threshold.
func (r *Reminder) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.remindAfter)

	stale, err := r.persistence.ExecutionRepository().ListAwaiting(ctx, cutoff)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		return nil
	}

	r.logger.Info("Found gates awaiting decision", "count", len(stale))

	for _, execution := range stale {
		instance, err := r.persistence.InstanceRepository().GetByID(ctx, execution.InstanceID)
		if err != nil {
			r.logger.Error("Failed to load instance for awaiting gate",
				"execution_id", execution.ID, "instance_id", execution.InstanceID, "error", err)

			continue
		}

		startedAt := execution.CreatedAt
		if execution.StartedAt != nil {
			startedAt = *execution.StartedAt
		}

		event := events.GateReminder{
			BaseEvent:   events.NewBaseEvent(events.GateReminderEvent, instance.ID, instance.OwnerID),
			ExecutionID: execution.ID,
			TaskID:      execution.TaskID,
			AwaitingFor: time.Since(startedAt).Round(time.Second).String(),
			StartedAt:   startedAt,
		}

		if err := r.eventBus.Publish(ctx, instance.ID, event); err != nil {
			r.logger.Error("Failed to publish gate reminder",
				"execution_id", execution.ID, "error", err)

			continue
		}

		r.logger.Info("Published gate reminder",
			"execution_id", execution.ID,
			"instance_id", instance.ID,
			"awaiting_for", event.AwaitingFor)
	}

	return nil
}
