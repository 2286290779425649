// Package log provides a task executor that records a message on the
// structured log, mostly useful for tracing workflows during development.
package log

import (
	"context"
	"log/slog"

	"github.com/vantagecrm/leadflow/pkg/protocol"
)

type Executor struct {
	message string
	level   string
}

func NewExecutor(parameters map[string]any) *Executor {
	message, _ := parameters["message"].(string)
	level, _ := parameters["level"].(string)

	if level == "" {
		level = "info"
	}

	return &Executor{message: message, level: level}
}

func (e *Executor) Execute(_ context.Context, input protocol.ExecutionInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor_type", "log")

	attrs := []any{"message", e.message, "instance_id", input.InstanceID}
	if input.Lead != nil {
		attrs = append(attrs, "lead_id", input.Lead.ID)
	}

	switch e.level {
	case "debug":
		logger.Debug("Workflow log task", attrs...)
	case "warn":
		logger.Warn("Workflow log task", attrs...)
	case "error":
		logger.Error("Workflow log task", attrs...)
	default:
		logger.Info("Workflow log task", attrs...)
	}

	return map[string]any{
		"message": e.message,
		"level":   e.level,
	}, nil
}
