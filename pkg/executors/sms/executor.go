// Package sms provides a task executor that sends a text message to the
// lead's phone number. Delivery goes through a pluggable sender so tests
// and local runs do not need a real SMS provider.
package sms

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vantagecrm/leadflow/pkg/protocol"
)

var ErrNoPhoneNumber = errors.New("lead has no phone number")

// Sender delivers a text message. The default implementation only records
// the send on the log.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type Executor struct {
	message string
	sender  Sender
}

func NewExecutor(parameters map[string]any, sender Sender) *Executor {
	message, _ := parameters["message"].(string)
	if message == "" {
		message = "Hello from your team"
	}

	if sender == nil {
		sender = &logSender{}
	}

	return &Executor{message: message, sender: sender}
}

func (e *Executor) Execute(ctx context.Context, input protocol.ExecutionInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor_type", "sms", "instance_id", input.InstanceID)

	if input.Lead == nil || input.Lead.Phone == "" {
		return nil, ErrNoPhoneNumber
	}

	body := personalize(e.message, input.Lead.Name)

	messageID, err := e.sender.Send(ctx, input.Lead.Phone, body)
	if err != nil {
		return nil, err
	}

	logger.Info("SMS sent", "lead_id", input.Lead.ID, "message_id", messageID)

	return map[string]any{
		"channel":    "sms",
		"to":         input.Lead.Phone,
		"message_id": messageID,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// personalize substitutes lead placeholders in the configured message.
func personalize(message, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}

	first := strings.Fields(name)[0]

	message = strings.ReplaceAll(message, "{name}", name)
	message = strings.ReplaceAll(message, "{first_name}", first)

	return message
}

type logSender struct{}

func (*logSender) Send(_ context.Context, to, body string) (string, error) {
	slog.Info("Simulated SMS delivery", "to", to, "body", body)

	return "simulated", nil
}
