package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/vantagecrm/leadflow/pkg/cmd"
	"github.com/vantagecrm/leadflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "leadflow-reminder",
		Usage:                 "Publish reminders for approval gates awaiting a decision",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "reminder-id",
				Aliases: []string{"id"},
				Usage:   "Custom reminder daemon ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("REMINDER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression controlling how often gates are swept",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "remind-after",
				Usage:   "How long a gate may wait before a reminder is published",
				Value:   time.Hour,
				Sources: cli.EnvVars("REMIND_AFTER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			reminderID := command.String("reminder-id")
			if reminderID == "" {
				reminderID = fmt.Sprintf("reminder-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("reminder").With("reminder_id", reminderID)

			logger.Info("Initializing LeadFlow reminder daemon")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "reminder", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			reminder := NewReminder(
				reminderID,
				persistence,
				eventBus,
				command.Duration("remind-after"),
				logger,
			)

			return reminder.Start(ctx, command.String("schedule"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
