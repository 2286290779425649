package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vantagecrm/leadflow/pkg/events"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/otelhelper"
	"github.com/vantagecrm/leadflow/pkg/persistence"
)

// ApproveGate records a reviewer's approval on an awaiting execution and
// resumes the instance from the task following the gate.
func (e *Engine) ApproveGate(ctx context.Context, executionID, userID, notes string) (*models.TaskExecution, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.approve_gate",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.OwnerIDKey, userID),
	)
	defer span.End()

	execution, instance, err := e.loadGate(ctx, executionID, userID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := unlock(ctx); err != nil {
			e.logger.Error("Failed to release instance lock", "instance_id", instance.ID, "error", err)
		}
	}()

	// The CAS rejects the second of two concurrent decisions.
	if _, err := e.persistence.InstanceRepository().TransitionStatus(ctx, instance.ID,
		[]models.InstanceStatus{models.InstanceStatusAwaitingHITL},
		models.InstanceStatusRunning,
	); err != nil {
		if persistence.IsStatusConflict(err) {
			return nil, ErrInvalidGateState
		}

		return nil, err
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusApproved
	execution.Notes = notes
	execution.DecidedBy = userID
	execution.CompletedAt = &now

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, err
	}

	e.logger.Info("Approval gate approved",
		"instance_id", instance.ID, "execution_id", execution.ID, "decided_by", userID)

	e.publish(ctx, instance.ID, events.GateApproved{
		BaseEvent:   events.NewBaseEvent(events.GateApprovedEvent, instance.ID, instance.OwnerID),
		ExecutionID: execution.ID,
		TaskID:      execution.TaskID,
		DecidedBy:   userID,
		Notes:       notes,
	})

	template, lead, err := e.loadContext(ctx, instance)
	if err != nil {
		return nil, err
	}

	gateTask := template.TaskByID(execution.TaskID)
	if gateTask == nil {
		// The template lost the gate task under a live instance, which is
		// unrecoverable for this run.
		if err := e.failInstance(ctx, instance, nil, ErrInvalidGateState); err != nil {
			return nil, err
		}

		return execution, nil
	}

	next := template.NextAfter(gateTask.DisplayOrder)

	nextTaskID := ""
	if next != nil {
		nextTaskID = next.ID
	}

	if err := e.persistence.InstanceRepository().SetCurrentTask(ctx, instance.ID, nextTaskID); err != nil {
		return nil, err
	}

	if err := e.run(ctx, template, lead, instance.ID); err != nil {
		return nil, err
	}

	return execution, nil
}

// RejectGate records a reviewer's rejection. pauseWorkflow freezes the
// instance for later reconsideration instead of terminally rejecting it.
func (e *Engine) RejectGate(ctx context.Context, executionID, userID, notes string, pauseWorkflow bool) (*models.TaskExecution, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.reject_gate",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.OwnerIDKey, userID),
	)
	defer span.End()

	execution, instance, err := e.loadGate(ctx, executionID, userID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := unlock(ctx); err != nil {
			e.logger.Error("Failed to release instance lock", "instance_id", instance.ID, "error", err)
		}
	}()

	target := models.InstanceStatusRejected
	if pauseWorkflow {
		target = models.InstanceStatusPaused
	}

	if _, err := e.persistence.InstanceRepository().TransitionStatus(ctx, instance.ID,
		[]models.InstanceStatus{models.InstanceStatusAwaitingHITL},
		target,
	); err != nil {
		if persistence.IsStatusConflict(err) {
			return nil, ErrInvalidGateState
		}

		return nil, err
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusRejected
	execution.Notes = notes
	execution.DecidedBy = userID
	execution.CompletedAt = &now

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, err
	}

	e.logger.Info("Approval gate rejected",
		"instance_id", instance.ID, "execution_id", execution.ID,
		"decided_by", userID, "paused", pauseWorkflow)

	e.publish(ctx, instance.ID, events.GateRejected{
		BaseEvent:   events.NewBaseEvent(events.GateRejectedEvent, instance.ID, instance.OwnerID),
		ExecutionID: execution.ID,
		TaskID:      execution.TaskID,
		DecidedBy:   userID,
		Notes:       notes,
	})

	return execution, nil
}

// loadGate fetches an awaiting execution and its instance, enforcing
// tenant ownership and gate state.
func (e *Engine) loadGate(ctx context.Context, executionID, userID string) (*models.TaskExecution, *models.WorkflowInstance, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, execution.InstanceID)
	if err != nil {
		return nil, nil, err
	}

	if instance.OwnerID != userID {
		return nil, nil, ErrForbidden
	}

	if execution.Status != models.ExecutionStatusAwaitingHITL {
		return nil, nil, ErrInvalidGateState
	}

	return execution, instance, nil
}
