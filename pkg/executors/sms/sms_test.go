package sms_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagecrm/leadflow/pkg/executors/sms"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/protocol"
)

type recordingSender struct {
	to   string
	body string
}

func (r *recordingSender) Send(_ context.Context, to, body string) (string, error) {
	r.to = to
	r.body = body

	return "msg-1", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestSMSExecutor_Execute(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	executor := sms.NewExecutor(map[string]any{
		"message": "Hi {first_name}, thanks for reaching out!",
	}, sender)

	input := protocol.ExecutionInput{
		InstanceID: "inst-1",
		Lead: &models.Lead{
			ID:    "lead-1",
			Name:  "Ada Lovelace",
			Phone: "+15550100",
		},
	}

	output, err := executor.Execute(context.Background(), input, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "+15550100", sender.to)
	assert.Equal(t, "Hi Ada, thanks for reaching out!", sender.body)
	assert.Equal(t, "sms", output["channel"])
	assert.Equal(t, "msg-1", output["message_id"])
}

func TestSMSExecutor_MissingPhone(t *testing.T) {
	t.Parallel()

	executor := sms.NewExecutor(map[string]any{"message": "hi"}, &recordingSender{})

	input := protocol.ExecutionInput{
		Lead: &models.Lead{ID: "lead-1", Name: "Ada"},
	}

	_, err := executor.Execute(context.Background(), input, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, sms.ErrNoPhoneNumber)
}

func TestSMSFactory(t *testing.T) {
	t.Parallel()

	factory := sms.NewFactory(nil)
	assert.Equal(t, "sms", factory.ID())
	require.NotNil(t, factory.Schema())

	executor, err := factory.Create(map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.NotNil(t, executor)
}
