package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagecrm/leadflow/pkg/eventbus"
	"github.com/vantagecrm/leadflow/pkg/events"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence/file"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturePublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestReminder_Sweep(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	publisher := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	instance := &models.WorkflowInstance{
		ID:         "instance-1",
		TemplateID: "template-1",
		LeadID:     "lead-1",
		OwnerID:    "agent-1",
		Status:     models.InstanceStatusAwaitingHITL,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, store.InstanceRepository().Create(ctx, instance))

	staleGate := &models.TaskExecution{
		ID:         "execution-stale",
		InstanceID: instance.ID,
		TaskID:     "task-review",
		Status:     models.ExecutionStatusAwaitingHITL,
		StartedAt:  timePtr(time.Now().Add(-2 * time.Hour)),
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, store.ExecutionRepository().Save(ctx, staleGate))

	freshGate := &models.TaskExecution{
		ID:         "execution-fresh",
		InstanceID: instance.ID,
		TaskID:     "task-review",
		Status:     models.ExecutionStatusAwaitingHITL,
		StartedAt:  timePtr(time.Now().Add(-time.Minute)),
		CreatedAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.ExecutionRepository().Save(ctx, freshGate))

	decided := &models.TaskExecution{
		ID:          "execution-decided",
		InstanceID:  instance.ID,
		TaskID:      "task-review",
		Status:      models.ExecutionStatusApproved,
		StartedAt:   timePtr(time.Now().Add(-3 * time.Hour)),
		CompletedAt: timePtr(time.Now().Add(-time.Hour)),
		CreatedAt:   time.Now().Add(-3 * time.Hour),
	}
	require.NoError(t, store.ExecutionRepository().Save(ctx, decided))

	reminder := NewReminder("reminder-test", store, publisher, time.Hour, logger)

	require.NoError(t, reminder.Sweep(ctx))

	published := publisher.published()
	require.Len(t, published, 1)

	event, ok := published[0].(events.GateReminder)
	require.True(t, ok)
	assert.Equal(t, events.GateReminderEvent, event.GetType())
	assert.Equal(t, "execution-stale", event.ExecutionID)
	assert.Equal(t, "instance-1", event.InstanceID)
	assert.Equal(t, "agent-1", event.OwnerID)
	assert.Equal(t, "task-review", event.TaskID)
	assert.NotEmpty(t, event.AwaitingFor)

	// A second sweep without state changes republishes the same gate.
	require.NoError(t, reminder.Sweep(ctx))
	assert.Len(t, publisher.published(), 2)
}

func TestReminder_Sweep_NoAwaitingGates(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	publisher := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reminder := NewReminder("reminder-test", store, publisher, time.Hour, logger)

	require.NoError(t, reminder.Sweep(ctx))
	assert.Empty(t, publisher.published())
}
