package httprequest

import (
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "http_request"
}

func (*Factory) Name() string {
	return "HTTP Request"
}

func (*Factory) Description() string {
	return "Performs an HTTP request to an external endpoint with optional headers and body."
}

func (*Factory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "HTTP Request",
		Properties: map[string]*models.Property{
			"host": {
				Type:        "string",
				Description: "The host to send the request to.",
			},
			"path": {
				Type:        "string",
				Description: "The request path.",
				Default:     "/",
			},
			"protocol": {
				Type:        "string",
				Description: "URL scheme to use.",
				Enum:        []any{"http", "https"},
				Default:     "https",
			},
			"method": {
				Type:        "string",
				Description: "HTTP method to use.",
				Enum:        []any{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
				Default:     "GET",
			},
			"headers": {
				Type:        "object",
				Description: "HTTP headers to include in the request.",
			},
			"body": {
				Type:        "string",
				Format:      "code",
				Description: "Request body content.",
			},
			"retry": {
				Type:        "object",
				Description: "Retry configuration for failed requests.",
				Properties: map[string]*models.Property{
					"attempts": {
						Type:        "integer",
						Description: "Number of attempts before giving up.",
						Default:     1,
					},
					"delay": {
						Type:        "integer",
						Description: "Delay between attempts in seconds.",
						Default:     0,
					},
				},
			},
		},
		Required: []string{"host"},
	}
}

func (*Factory) Create(parameters map[string]any) (protocol.Executor, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}

	return NewExecutor(parameters)
}
