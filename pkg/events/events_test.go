package events_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagecrm/leadflow/pkg/events"
)

func TestNewBaseEvent(t *testing.T) {
	t.Parallel()

	base := events.NewBaseEvent(events.InstanceStartedEvent, "inst-1", "owner-1")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, events.InstanceStartedEvent, base.Type)
	assert.Equal(t, "inst-1", base.InstanceID)
	assert.Equal(t, "owner-1", base.OwnerID)
	assert.False(t, base.Timestamp.IsZero())
}

func TestEventTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, events.InstanceStartedEvent, events.InstanceStarted{}.GetType())
	assert.Equal(t, events.InstanceCompletedEvent, events.InstanceCompleted{}.GetType())
	assert.Equal(t, events.InstanceFailedEvent, events.InstanceFailed{}.GetType())
	assert.Equal(t, events.TaskStartedEvent, events.TaskStarted{}.GetType())
	assert.Equal(t, events.TaskCompletedEvent, events.TaskCompleted{}.GetType())
	assert.Equal(t, events.TaskFailedEvent, events.TaskFailed{}.GetType())
	assert.Equal(t, events.TaskSkippedEvent, events.TaskSkipped{}.GetType())
	assert.Equal(t, events.GateAwaitingEvent, events.GateAwaiting{}.GetType())
	assert.Equal(t, events.GateApprovedEvent, events.GateApproved{}.GetType())
	assert.Equal(t, events.GateRejectedEvent, events.GateRejected{}.GetType())
	assert.Equal(t, events.GateReminderEvent, events.GateReminder{}.GetType())
}

func TestGateApprovedRoundTrip(t *testing.T) {
	t.Parallel()

	event := events.GateApproved{
		BaseEvent:   events.NewBaseEvent(events.GateApprovedEvent, "inst-1", "owner-1"),
		ExecutionID: "exec-1",
		TaskID:      "task-1",
		DecidedBy:   "user-1",
		Notes:       "looks good",
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.GateApproved

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, event.ExecutionID, decoded.ExecutionID)
	assert.Equal(t, event.DecidedBy, decoded.DecidedBy)
	assert.Equal(t, event.Notes, decoded.Notes)
}
