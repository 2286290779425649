package email

import (
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/protocol"
)

type Factory struct {
	sender Sender
}

// NewFactory builds an email executor factory. A nil sender falls back to a
// log-only sender.
func NewFactory(sender Sender) *Factory {
	return &Factory{sender: sender}
}

func (*Factory) ID() string {
	return "email"
}

func (*Factory) Name() string {
	return "Send Email"
}

func (*Factory) Description() string {
	return "Sends an email to the lead's address."
}

func (*Factory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Send Email",
		Properties: map[string]*models.Property{
			"subject": {
				Type:        "string",
				Description: "Email subject. Supports {name} and {first_name} placeholders.",
			},
			"body": {
				Type:        "string",
				Format:      "code",
				Description: "Email body. Supports {name} and {first_name} placeholders.",
			},
		},
		Required: []string{"subject", "body"},
	}
}

func (f *Factory) Create(parameters map[string]any) (protocol.Executor, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}

	return NewExecutor(parameters, f.sender), nil
}
