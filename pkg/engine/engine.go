package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vantagecrm/leadflow/pkg/eventbus"
	"github.com/vantagecrm/leadflow/pkg/events"
	"github.com/vantagecrm/leadflow/pkg/lock"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/otelhelper"
	"github.com/vantagecrm/leadflow/pkg/persistence"
	"github.com/vantagecrm/leadflow/pkg/protocol"
	"github.com/vantagecrm/leadflow/pkg/registry"
	tmpl "github.com/vantagecrm/leadflow/pkg/template"
)

// Engine drives workflow instances through their task sequence. All state
// lives in persistence; the engine itself is stateless and safe to run in
// multiple processes when backed by a distributed locker.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	locker      lock.Locker
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	locker lock.Locker,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}

	if publisher == nil {
		publisher = nopPublisher{}
	}

	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("leadflow-engine")
	}

	return &Engine{
		persistence: p,
		registry:    reg,
		publisher:   publisher,
		locker:      locker,
		tracer:      tracer,
		logger:      logger.With("module", "engine"),
	}
}

// StartInstance validates the template/lead pair for the tenant, creates a
// running instance pointing at the first task, and advances it until the
// sequence pauses or finishes.
func (e *Engine) StartInstance(ctx context.Context, templateID, leadID, userID string) (*models.WorkflowInstance, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start_instance",
		attribute.String(otelhelper.TemplateIDKey, templateID),
		attribute.String(otelhelper.LeadIDKey, leadID),
		attribute.String(otelhelper.OwnerIDKey, userID),
	)
	defer span.End()

	logger := e.logger.With("template_id", templateID, "lead_id", leadID)

	template, err := e.persistence.TemplateRepository().GetByID(ctx, templateID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	lead, err := e.persistence.LeadRepository().GetByID(ctx, leadID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if template.OwnerID != userID || lead.OwnerID != userID {
		return nil, ErrForbidden
	}

	if !template.IsActive {
		return nil, ErrTemplateInactive
	}

	if template.Industry != models.IndustryGeneric && template.Industry != lead.Industry {
		return nil, ErrIndustryMismatch
	}

	instances := e.persistence.InstanceRepository()

	existing, err := instances.FindActive(ctx, templateID, leadID)
	if err != nil && !persistence.IsInstanceNotFound(err) {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if existing != nil {
		return nil, fmt.Errorf("%w: instance %s", ErrActiveInstanceExists, existing.ID)
	}

	now := time.Now().UTC()
	instance := &models.WorkflowInstance{
		ID:         newID(),
		TemplateID: templateID,
		LeadID:     leadID,
		OwnerID:    userID,
		Status:     models.InstanceStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	first := template.FirstTask()
	if first != nil {
		instance.CurrentTaskID = first.ID
	}

	if err := instances.Create(ctx, instance); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, instance.ID))
	logger.Info("Started workflow instance", "instance_id", instance.ID)

	started := events.InstanceStarted{
		BaseEvent:  events.NewBaseEvent(events.InstanceStartedEvent, instance.ID, userID),
		TemplateID: templateID,
		LeadID:     leadID,
	}
	if first != nil {
		started.FirstTaskID = first.ID
	}

	e.publish(ctx, instance.ID, started)

	unlock, err := e.locker.Lock(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := unlock(ctx); err != nil {
			logger.Error("Failed to release instance lock", "instance_id", instance.ID, "error", err)
		}
	}()

	if err := e.run(ctx, template, lead, instance.ID); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return instances.GetByID(ctx, instance.ID)
}

// Advance resumes a running instance, typically after an external executor
// completion callback. It is a no-op for instances that are not running.
func (e *Engine) Advance(ctx context.Context, instanceID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.advance",
		attribute.String(otelhelper.InstanceIDKey, instanceID),
	)
	defer span.End()

	unlock, err := e.locker.Lock(ctx, instanceID)
	if err != nil {
		return err
	}

	defer func() {
		if err := unlock(ctx); err != nil {
			e.logger.Error("Failed to release instance lock", "instance_id", instanceID, "error", err)
		}
	}()

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	template, lead, err := e.loadContext(ctx, instance)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := e.run(ctx, template, lead, instanceID); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// InstanceHistory returns an instance and its execution rows. Instances
// owned by other users are reported as not found.
func (e *Engine) InstanceHistory(ctx context.Context, instanceID, userID string) (*models.WorkflowInstance, []*models.TaskExecution, error) {
	instance, err := e.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	if instance.OwnerID != userID {
		return nil, nil, persistence.ErrInstanceNotFound
	}

	executions, err := e.persistence.ExecutionRepository().ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	return instance, executions, nil
}

// ListInstances returns every instance owned by the user.
func (e *Engine) ListInstances(ctx context.Context, userID string) ([]*models.WorkflowInstance, error) {
	return e.persistence.InstanceRepository().ListByOwner(ctx, userID)
}

// run advances the instance task by task until it pauses, finishes, or
// fails. The caller must hold the instance lock. Executor failures are
// recorded state, not returned errors; only infrastructure faults propagate.
func (e *Engine) run(ctx context.Context, template *models.WorkflowTemplate, lead *models.Lead, instanceID string) error {
	instances := e.persistence.InstanceRepository()
	logger := e.logger.With("instance_id", instanceID)

	for {
		instance, err := instances.GetByID(ctx, instanceID)
		if err != nil {
			return err
		}

		if instance.Status != models.InstanceStatusRunning {
			return nil
		}

		if instance.CurrentTaskID == "" {
			return e.complete(ctx, instance, template)
		}

		task := template.TaskByID(instance.CurrentTaskID)
		if task == nil {
			return e.failInstance(ctx, instance, nil,
				fmt.Errorf("task %s not found in template %s", instance.CurrentTaskID, template.ID))
		}

		var next *models.TaskDefinition

		switch task.Type {
		case models.TaskTypeGate:
			return e.pauseAtGate(ctx, instance, task)
		case models.TaskTypeAutomated:
			next, err = e.runAutomated(ctx, instance, template, lead, task, logger)
		case models.TaskTypeConditional:
			next, err = e.runConditional(ctx, instance, template, lead, task)
		default:
			return e.failInstance(ctx, instance, task,
				fmt.Errorf("unknown task type %q", task.Type))
		}

		if err != nil {
			return err
		}

		// A nil next with a non-running instance means the task failed and
		// the failure was already recorded.
		if next == nil {
			refreshed, err := instances.GetByID(ctx, instanceID)
			if err != nil {
				return err
			}

			if refreshed.Status != models.InstanceStatusRunning {
				return nil
			}

			return e.complete(ctx, refreshed, template)
		}

		if err := instances.SetCurrentTask(ctx, instanceID, next.ID); err != nil {
			return err
		}
	}
}

// pauseAtGate records an awaiting execution for the gate and parks the
// instance until a decision arrives.
func (e *Engine) pauseAtGate(ctx context.Context, instance *models.WorkflowInstance, task *models.TaskDefinition) error {
	now := time.Now().UTC()
	execution := &models.TaskExecution{
		ID:         newID(),
		InstanceID: instance.ID,
		TaskID:     task.ID,
		Status:     models.ExecutionStatusAwaitingHITL,
		StartedAt:  &now,
		CreatedAt:  now,
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return err
	}

	if _, err := e.persistence.InstanceRepository().TransitionStatus(ctx, instance.ID,
		[]models.InstanceStatus{models.InstanceStatusRunning},
		models.InstanceStatusAwaitingHITL,
	); err != nil {
		return err
	}

	awaiting := events.GateAwaiting{
		BaseEvent:   events.NewBaseEvent(events.GateAwaitingEvent, instance.ID, instance.OwnerID),
		ExecutionID: execution.ID,
		TaskID:      task.ID,
	}
	if task.Config.Gate != nil {
		awaiting.Prompt = task.Config.Gate.Prompt
		awaiting.Urgency = task.Config.Gate.Urgency
	}

	e.publish(ctx, instance.ID, awaiting)

	return nil
}

// runAutomated executes the task's executor and records the outcome. It
// returns the next sequential task, or nil when the sequence is exhausted
// or the task failed.
func (e *Engine) runAutomated(
	ctx context.Context,
	instance *models.WorkflowInstance,
	template *models.WorkflowTemplate,
	lead *models.Lead,
	task *models.TaskDefinition,
	logger *slog.Logger,
) (*models.TaskDefinition, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.task",
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
		attribute.String(otelhelper.TaskIDKey, task.ID),
		attribute.String(otelhelper.TaskTypeKey, string(task.Type)),
	)
	defer span.End()

	now := time.Now().UTC()
	execution := &models.TaskExecution{
		ID:         newID(),
		InstanceID: instance.ID,
		TaskID:     task.ID,
		Status:     models.ExecutionStatusRunning,
		StartedAt:  &now,
		CreatedAt:  now,
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, err
	}

	e.publish(ctx, instance.ID, events.TaskStarted{
		BaseEvent:    events.NewBaseEvent(events.TaskStartedEvent, instance.ID, instance.OwnerID),
		ExecutionID:  execution.ID,
		TaskID:       task.ID,
		TaskType:     string(task.Type),
		DisplayOrder: task.DisplayOrder,
	})

	if task.Config.Automated == nil {
		return nil, e.failTask(ctx, instance, task, execution,
			fmt.Errorf("automated task %s has no executor configuration", task.ID))
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutorTypeKey, task.Config.Automated.ExecutorType))

	outputs, _, err := e.priorOutputs(ctx, template, instance.ID)
	if err != nil {
		return nil, err
	}

	parameters, err := tmpl.RenderParameters(task.Config.Automated.Parameters, map[string]any{
		"lead":     lead.BranchFields(),
		"outputs":  outputs,
		"instance": map[string]any{"id": instance.ID, "template_id": template.ID},
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, e.failTask(ctx, instance, task, execution, err)
	}

	executor, err := e.registry.CreateExecutor(task.Config.Automated.ExecutorType, parameters)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, e.failTask(ctx, instance, task, execution, err)
	}

	input := protocol.ExecutionInput{
		InstanceID:   instance.ID,
		Lead:         lead,
		Parameters:   parameters,
		PriorOutputs: outputs,
	}

	output, err := executor.Execute(ctx, input, logger.With("task_id", task.ID))
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, e.failTask(ctx, instance, task, execution, err)
	}

	completedAt := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.Output = output
	execution.CompletedAt = &completedAt

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, err
	}

	e.publish(ctx, instance.ID, events.TaskCompleted{
		BaseEvent:   events.NewBaseEvent(events.TaskCompletedEvent, instance.ID, instance.OwnerID),
		ExecutionID: execution.ID,
		TaskID:      task.ID,
		Output:      output,
		DurationMs:  completedAt.Sub(now).Milliseconds(),
	})

	return template.NextAfter(task.DisplayOrder), nil
}

// runConditional evaluates the task's branch rules. A matching rule jumps
// to its target order; no match falls back to the next sequential task.
// Tasks jumped over on a forward branch are recorded as skipped.
func (e *Engine) runConditional(
	ctx context.Context,
	instance *models.WorkflowInstance,
	template *models.WorkflowTemplate,
	lead *models.Lead,
	task *models.TaskDefinition,
) (*models.TaskDefinition, error) {
	now := time.Now().UTC()
	execution := &models.TaskExecution{
		ID:         newID(),
		InstanceID: instance.ID,
		TaskID:     task.ID,
		Status:     models.ExecutionStatusRunning,
		StartedAt:  &now,
		CreatedAt:  now,
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, err
	}

	if task.Config.Conditional == nil {
		return nil, e.failTask(ctx, instance, task, execution,
			fmt.Errorf("conditional task %s has no rules", task.ID))
	}

	outputs, lastOrder, err := e.priorOutputs(ctx, template, instance.ID)
	if err != nil {
		return nil, err
	}

	branchCtx := models.BranchContext{
		Lead:      lead.BranchFields(),
		Outputs:   outputs,
		LastOrder: lastOrder,
	}

	nextOrder, matched := models.SelectBranch(task.Config.Conditional.Rules, branchCtx)

	var next *models.TaskDefinition

	if matched {
		// Forward-only: a self or backward target would revisit this
		// conditional and advance forever.
		if nextOrder <= task.DisplayOrder {
			return nil, e.failTask(ctx, instance, task, execution,
				fmt.Errorf("branch rule targets display order %d, which does not advance past %d",
					nextOrder, task.DisplayOrder))
		}

		next = template.TaskByOrder(nextOrder)
		if next == nil {
			return nil, e.failTask(ctx, instance, task, execution,
				fmt.Errorf("branch rule targets display order %d which does not exist", nextOrder))
		}
	} else {
		next = template.NextAfter(task.DisplayOrder)
	}

	completedAt := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &completedAt
	execution.Output = map[string]any{"matched": matched}

	if next != nil {
		execution.Output["next_order"] = next.DisplayOrder
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, err
	}

	if next != nil && next.DisplayOrder > task.DisplayOrder+1 {
		if err := e.recordSkipped(ctx, instance, template, task.DisplayOrder, next.DisplayOrder); err != nil {
			return nil, err
		}
	}

	return next, nil
}

// recordSkipped writes a skipped execution for every task strictly between
// the two display orders.
func (e *Engine) recordSkipped(
	ctx context.Context,
	instance *models.WorkflowInstance,
	template *models.WorkflowTemplate,
	fromOrder, toOrder int,
) error {
	for _, task := range template.Tasks {
		if task.DisplayOrder <= fromOrder || task.DisplayOrder >= toOrder {
			continue
		}

		now := time.Now().UTC()
		execution := &models.TaskExecution{
			ID:          newID(),
			InstanceID:  instance.ID,
			TaskID:      task.ID,
			Status:      models.ExecutionStatusSkipped,
			CompletedAt: &now,
			CreatedAt:   now,
		}

		if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
			return err
		}

		e.publish(ctx, instance.ID, events.TaskSkipped{
			BaseEvent:    events.NewBaseEvent(events.TaskSkippedEvent, instance.ID, instance.OwnerID),
			ExecutionID:  execution.ID,
			TaskID:       task.ID,
			DisplayOrder: task.DisplayOrder,
		})
	}

	return nil
}

// failTask records the execution failure and fails the instance. The
// failure is persisted state, so the returned error is nil unless
// persistence itself failed.
func (e *Engine) failTask(
	ctx context.Context,
	instance *models.WorkflowInstance,
	task *models.TaskDefinition,
	execution *models.TaskExecution,
	cause error,
) error {
	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.Error = cause.Error()
	execution.CompletedAt = &now

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return err
	}

	e.publish(ctx, instance.ID, events.TaskFailed{
		BaseEvent:   events.NewBaseEvent(events.TaskFailedEvent, instance.ID, instance.OwnerID),
		ExecutionID: execution.ID,
		TaskID:      task.ID,
		Error:       cause.Error(),
	})

	return e.failInstance(ctx, instance, task, cause)
}

func (e *Engine) failInstance(ctx context.Context, instance *models.WorkflowInstance, task *models.TaskDefinition, cause error) error {
	if _, err := e.persistence.InstanceRepository().TransitionStatus(ctx, instance.ID,
		[]models.InstanceStatus{models.InstanceStatusRunning},
		models.InstanceStatusFailed,
	); err != nil {
		return err
	}

	e.logger.Error("Workflow instance failed", "instance_id", instance.ID, "error", cause)

	failed := events.InstanceFailed{
		BaseEvent: events.NewBaseEvent(events.InstanceFailedEvent, instance.ID, instance.OwnerID),
		Error:     cause.Error(),
	}
	if task != nil {
		failed.TaskID = task.ID
	}

	e.publish(ctx, instance.ID, failed)

	return nil
}

func (e *Engine) complete(ctx context.Context, instance *models.WorkflowInstance, template *models.WorkflowTemplate) error {
	updated, err := e.persistence.InstanceRepository().TransitionStatus(ctx, instance.ID,
		[]models.InstanceStatus{models.InstanceStatusRunning},
		models.InstanceStatusCompleted,
	)
	if err != nil {
		return err
	}

	e.logger.Info("Workflow instance completed", "instance_id", instance.ID)

	var duration time.Duration
	if updated.CompletedAt != nil {
		duration = updated.CompletedAt.Sub(updated.CreatedAt)
	}

	e.publish(ctx, instance.ID, events.InstanceCompleted{
		BaseEvent:  events.NewBaseEvent(events.InstanceCompletedEvent, instance.ID, instance.OwnerID),
		TemplateID: template.ID,
		LeadID:     instance.LeadID,
		Duration:   duration,
	})

	return nil
}

// priorOutputs collects the recorded outputs of finished executions keyed
// by display order, plus the display order of the most recently finished
// one.
func (e *Engine) priorOutputs(ctx context.Context, template *models.WorkflowTemplate, instanceID string) (map[int]map[string]any, int, error) {
	executions, err := e.persistence.ExecutionRepository().ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, 0, err
	}

	outputs := make(map[int]map[string]any)

	var (
		lastOrder int
		lastTime  time.Time
	)

	for _, execution := range executions {
		if execution.Status != models.ExecutionStatusCompleted && execution.Status != models.ExecutionStatusApproved {
			continue
		}

		task := template.TaskByID(execution.TaskID)
		if task == nil {
			continue
		}

		if execution.Output != nil {
			outputs[task.DisplayOrder] = execution.Output
		}

		if execution.CompletedAt != nil && execution.CompletedAt.After(lastTime) {
			lastTime = *execution.CompletedAt
			lastOrder = task.DisplayOrder
		}
	}

	return outputs, lastOrder, nil
}

// loadContext loads the template and lead an instance runs against.
func (e *Engine) loadContext(ctx context.Context, instance *models.WorkflowInstance) (*models.WorkflowTemplate, *models.Lead, error) {
	template, err := e.persistence.TemplateRepository().GetByID(ctx, instance.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	lead, err := e.persistence.LeadRepository().GetByID(ctx, instance.LeadID)
	if err != nil {
		return nil, nil, err
	}

	return template, lead, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type nopPublisher struct{}

func (nopPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error {
	return nil
}
