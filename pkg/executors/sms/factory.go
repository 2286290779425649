package sms

import (
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/protocol"
)

type Factory struct {
	sender Sender
}

// NewFactory builds an SMS executor factory. A nil sender falls back to a
// log-only sender.
func NewFactory(sender Sender) *Factory {
	return &Factory{sender: sender}
}

func (*Factory) ID() string {
	return "sms"
}

func (*Factory) Name() string {
	return "Send SMS"
}

func (*Factory) Description() string {
	return "Sends a text message to the lead's phone number."
}

func (*Factory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Send SMS",
		Properties: map[string]*models.Property{
			"message": {
				Type:        "string",
				Description: "Message body. Supports {name} and {first_name} placeholders.",
			},
		},
		Required: []string{"message"},
	}
}

func (f *Factory) Create(parameters map[string]any) (protocol.Executor, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}

	return NewExecutor(parameters, f.sender), nil
}
