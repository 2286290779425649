// Package email provides a task executor that sends an email to the lead.
// Delivery goes through a pluggable sender so tests and local runs do not
// need a real mail provider.
package email

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vantagecrm/leadflow/pkg/protocol"
)

var ErrNoEmailAddress = errors.New("lead has no email address")

// Sender delivers an email. The default implementation only records the
// send on the log.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

type Executor struct {
	subject string
	body    string
	sender  Sender
}

func NewExecutor(parameters map[string]any, sender Sender) *Executor {
	subject, _ := parameters["subject"].(string)
	if subject == "" {
		subject = "A message from your team"
	}

	body, _ := parameters["body"].(string)

	if sender == nil {
		sender = &logSender{}
	}

	return &Executor{subject: subject, body: body, sender: sender}
}

func (e *Executor) Execute(ctx context.Context, input protocol.ExecutionInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor_type", "email", "instance_id", input.InstanceID)

	if input.Lead == nil || input.Lead.Email == "" {
		return nil, ErrNoEmailAddress
	}

	subject := personalize(e.subject, input.Lead.Name)
	body := personalize(e.body, input.Lead.Name)

	messageID, err := e.sender.Send(ctx, input.Lead.Email, subject, body)
	if err != nil {
		return nil, err
	}

	logger.Info("Email sent", "lead_id", input.Lead.ID, "message_id", messageID)

	return map[string]any{
		"channel":    "email",
		"to":         input.Lead.Email,
		"subject":    subject,
		"message_id": messageID,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func personalize(text, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}

	first := strings.Fields(name)[0]

	text = strings.ReplaceAll(text, "{name}", name)
	text = strings.ReplaceAll(text, "{first_name}", first)

	return text
}

type logSender struct{}

func (*logSender) Send(_ context.Context, to, subject, _ string) (string, error) {
	slog.Info("Simulated email delivery", "to", to, "subject", subject)

	return "simulated", nil
}
