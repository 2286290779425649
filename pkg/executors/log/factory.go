package log

import (
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "log"
}

func (*Factory) Name() string {
	return "Log"
}

func (*Factory) Description() string {
	return "Writes a message to the structured log. Useful for tracing workflow progress."
}

func (*Factory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Log",
		Properties: map[string]*models.Property{
			"message": {
				Type:        "string",
				Description: "The message to log.",
			},
			"level": {
				Type:        "string",
				Description: "Log level to use.",
				Enum:        []any{"debug", "info", "warn", "error"},
				Default:     "info",
			},
		},
		Required: []string{"message"},
	}
}

func (*Factory) Create(parameters map[string]any) (protocol.Executor, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}

	return NewExecutor(parameters), nil
}
