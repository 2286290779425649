package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagecrm/leadflow/pkg/engine"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence"
	"github.com/vantagecrm/leadflow/pkg/persistence/file"
	"github.com/vantagecrm/leadflow/pkg/protocol"
	"github.com/vantagecrm/leadflow/pkg/registry"
)

const testOwner = "owner-1"

// countingExecutor records how many times it ran and can be told to fail.
type countingExecutor struct {
	calls *int
	fail  bool
}

func (c countingExecutor) Execute(_ context.Context, _ protocol.ExecutionInput, _ *slog.Logger) (map[string]any, error) {
	*c.calls += 1

	if c.fail {
		return nil, errors.New("executor blew up")
	}

	return map[string]any{"call": *c.calls}, nil
}

type countingFactory struct {
	id    string
	calls *int
	fail  bool
}

func (f *countingFactory) ID() string                 { return f.id }
func (f *countingFactory) Name() string               { return f.id }
func (f *countingFactory) Description() string        { return "test executor" }
func (f *countingFactory) Schema() *models.JSONSchema { return nil }
func (f *countingFactory) Create(_ map[string]any) (protocol.Executor, error) {
	return countingExecutor{calls: f.calls, fail: f.fail}, nil
}

type testHarness struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	calls       int
}

func newHarness(t *testing.T, failExecutor bool) *testHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())

	harness := &testHarness{persistence: store}

	reg := registry.NewRegistry(logger)
	reg.RegisterExecutor(&countingFactory{id: "test", calls: &harness.calls, fail: failExecutor})

	harness.engine = engine.NewEngine(store, reg, nil, nil, nil, logger)

	return harness
}

func automatedTask(id string, order int) *models.TaskDefinition {
	return &models.TaskDefinition{
		ID:           id,
		Name:         id,
		Type:         models.TaskTypeAutomated,
		DisplayOrder: order,
		Config: models.TaskConfig{
			Automated: &models.AutomatedConfig{ExecutorType: "test"},
		},
	}
}

func gateTask(id string, order int) *models.TaskDefinition {
	return &models.TaskDefinition{
		ID:           id,
		Name:         id,
		Type:         models.TaskTypeGate,
		DisplayOrder: order,
		Config: models.TaskConfig{
			Gate: &models.GateConfig{Prompt: "Approve?"},
		},
	}
}

func conditionalTask(id string, order int, rules []models.BranchRule) *models.TaskDefinition {
	return &models.TaskDefinition{
		ID:           id,
		Name:         id,
		Type:         models.TaskTypeConditional,
		DisplayOrder: order,
		Config: models.TaskConfig{
			Conditional: &models.ConditionalConfig{Rules: rules},
		},
	}
}

func (h *testHarness) seed(t *testing.T, tasks ...*models.TaskDefinition) (*models.WorkflowTemplate, *models.Lead) {
	t.Helper()

	ctx := context.Background()

	template := &models.WorkflowTemplate{
		ID:       "template-1",
		Name:     "Lead outreach",
		Industry: models.IndustryRealEstate,
		OwnerID:  testOwner,
		Tasks:    tasks,
		IsActive: true,
	}
	require.NoError(t, h.persistence.TemplateRepository().Save(ctx, template))

	lead := &models.Lead{
		ID:       "lead-1",
		OwnerID:  testOwner,
		Industry: models.IndustryRealEstate,
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "+15550100",
		Attributes: map[string]any{
			"stage":  "new",
			"budget": 500000,
		},
	}
	require.NoError(t, h.persistence.LeadRepository().Save(ctx, lead))

	return template, lead
}

func (h *testHarness) executions(t *testing.T, instanceID string) []*models.TaskExecution {
	t.Helper()

	executions, err := h.persistence.ExecutionRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)

	return executions
}

func (h *testHarness) awaitingExecution(t *testing.T, instanceID string) *models.TaskExecution {
	t.Helper()

	for _, execution := range h.executions(t, instanceID) {
		if execution.Status == models.ExecutionStatusAwaitingHITL {
			return execution
		}
	}

	t.Fatalf("no awaiting execution for instance %s", instanceID)

	return nil
}

func TestStartInstance_AllAutomatedRunsToCompletion(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		automatedTask("task-a", 1),
		automatedTask("task-b", 2),
		automatedTask("task-c", 3),
	)

	instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.NotNil(t, instance.CompletedAt)
	assert.Equal(t, 3, harness.calls)

	executions := harness.executions(t, instance.ID)
	require.Len(t, executions, 3)

	for _, execution := range executions {
		assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	}
}

func TestStartInstance_DuplicateActiveConflicts(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		automatedTask("task-a", 1),
		gateTask("task-b", 2),
	)

	ctx := context.Background()

	first, err := harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusAwaitingHITL, first.Status)

	_, err = harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
	require.Error(t, err)
	assert.True(t, engine.IsActiveInstanceExists(err))

	// A terminal first instance frees the pair for a new start.
	execution := harness.awaitingExecution(t, first.ID)
	_, err = harness.engine.RejectGate(ctx, execution.ID, testOwner, "", false)
	require.NoError(t, err)

	second, err := harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestStartInstance_ValidationFailures(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	template, lead := harness.seed(t, automatedTask("task-a", 1))

	ctx := context.Background()

	_, err := harness.engine.StartInstance(ctx, "missing", lead.ID, testOwner)
	assert.True(t, persistence.IsTemplateNotFound(err))

	_, err = harness.engine.StartInstance(ctx, template.ID, "missing", testOwner)
	assert.True(t, persistence.IsLeadNotFound(err))

	_, err = harness.engine.StartInstance(ctx, template.ID, lead.ID, "someone-else")
	assert.True(t, engine.IsForbidden(err))

	template.IsActive = false
	require.NoError(t, harness.persistence.TemplateRepository().Save(ctx, template))

	_, err = harness.engine.StartInstance(ctx, template.ID, lead.ID, testOwner)
	assert.ErrorIs(t, err, engine.ErrTemplateInactive)

	template.IsActive = true
	template.Industry = models.IndustryDental
	require.NoError(t, harness.persistence.TemplateRepository().Save(ctx, template))

	_, err = harness.engine.StartInstance(ctx, template.ID, lead.ID, testOwner)
	assert.ErrorIs(t, err, engine.ErrIndustryMismatch)
}

func TestStartInstance_GenericTemplateAcceptsAnyIndustry(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	template, _ := harness.seed(t, automatedTask("task-a", 1))

	ctx := context.Background()

	template.Industry = models.IndustryGeneric
	require.NoError(t, harness.persistence.TemplateRepository().Save(ctx, template))

	instance, err := harness.engine.StartInstance(ctx, template.ID, "lead-1", testOwner)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
}

func TestExecutorFailureFailsInstance(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, true)
	harness.seed(t,
		automatedTask("task-a", 1),
		automatedTask("task-b", 2),
	)

	instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusFailed, instance.Status)
	assert.Equal(t, 1, harness.calls)

	executions := harness.executions(t, instance.ID)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, executions[0].Status)
	assert.Contains(t, executions[0].Error, "executor blew up")
}

func TestHITLScenario_ApproveResumesToCompletion(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		automatedTask("task-a", 1),
		gateTask("task-b", 2),
		automatedTask("task-c", 3),
	)

	ctx := context.Background()

	instance, err := harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusAwaitingHITL, instance.Status)
	assert.Equal(t, 1, harness.calls)

	execution := harness.awaitingExecution(t, instance.ID)

	approved, err := harness.engine.ApproveGate(ctx, execution.ID, testOwner, "go ahead")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusApproved, approved.Status)
	assert.Equal(t, "go ahead", approved.Notes)
	assert.Equal(t, testOwner, approved.DecidedBy)
	assert.NotNil(t, approved.CompletedAt)

	final, err := harness.persistence.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, final.Status)
	assert.Equal(t, 2, harness.calls)

	statuses := map[models.ExecutionStatus]int{}
	for _, execution := range harness.executions(t, instance.ID) {
		statuses[execution.Status]++
	}

	assert.Equal(t, 2, statuses[models.ExecutionStatusCompleted])
	assert.Equal(t, 1, statuses[models.ExecutionStatusApproved])
}

func TestHITLScenario_RejectPausesOrTerminates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pause    bool
		expected models.InstanceStatus
	}{
		{name: "pause freezes the instance", pause: true, expected: models.InstanceStatusPaused},
		{name: "reject terminates the instance", pause: false, expected: models.InstanceStatusRejected},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			harness := newHarness(t, false)
			harness.seed(t,
				automatedTask("task-a", 1),
				gateTask("task-b", 2),
				automatedTask("task-c", 3),
			)

			ctx := context.Background()

			instance, err := harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
			require.NoError(t, err)

			execution := harness.awaitingExecution(t, instance.ID)

			rejected, err := harness.engine.RejectGate(ctx, execution.ID, testOwner, "not ready", testCase.pause)
			require.NoError(t, err)
			assert.Equal(t, models.ExecutionStatusRejected, rejected.Status)
			assert.Equal(t, "not ready", rejected.Notes)

			final, err := harness.persistence.InstanceRepository().GetByID(ctx, instance.ID)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, final.Status)

			// No execution rows appear after the decision.
			assert.Len(t, harness.executions(t, instance.ID), 2)
			assert.Equal(t, 1, harness.calls)
		})
	}
}

func TestGateDecision_InvalidStateIsIdempotentFailure(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		gateTask("task-a", 1),
		automatedTask("task-b", 2),
	)

	ctx := context.Background()

	instance, err := harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	execution := harness.awaitingExecution(t, instance.ID)

	_, err = harness.engine.ApproveGate(ctx, execution.ID, testOwner, "")
	require.NoError(t, err)

	// A second decision on the same execution fails without state change.
	_, err = harness.engine.ApproveGate(ctx, execution.ID, testOwner, "")
	assert.True(t, engine.IsInvalidGateState(err))

	_, err = harness.engine.RejectGate(ctx, execution.ID, testOwner, "", false)
	assert.True(t, engine.IsInvalidGateState(err))

	final, err := harness.persistence.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, final.Status)
}

func TestGateDecision_WrongOwnerForbidden(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t, gateTask("task-a", 1))

	ctx := context.Background()

	instance, err := harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	execution := harness.awaitingExecution(t, instance.ID)

	_, err = harness.engine.ApproveGate(ctx, execution.ID, "intruder", "")
	assert.True(t, engine.IsForbidden(err))

	final, err := harness.persistence.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusAwaitingHITL, final.Status)
}

func TestConditionalBranch_JumpsAndSkips(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		conditionalTask("task-branch", 1, []models.BranchRule{
			{Field: "lead.stage", Operator: models.OperatorEquals, Value: "new", NextOrder: 3},
		}),
		automatedTask("task-skipped", 2),
		automatedTask("task-target", 3),
	)

	instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Equal(t, 1, harness.calls)

	byTask := map[string]models.ExecutionStatus{}
	for _, execution := range harness.executions(t, instance.ID) {
		byTask[execution.TaskID] = execution.Status
	}

	assert.Equal(t, models.ExecutionStatusCompleted, byTask["task-branch"])
	assert.Equal(t, models.ExecutionStatusSkipped, byTask["task-skipped"])
	assert.Equal(t, models.ExecutionStatusCompleted, byTask["task-target"])
}

func TestConditionalBranch_NoMatchFallsThrough(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		conditionalTask("task-branch", 1, []models.BranchRule{
			{Field: "lead.stage", Operator: models.OperatorEquals, Value: "closed", NextOrder: 3},
		}),
		automatedTask("task-b", 2),
		automatedTask("task-c", 3),
	)

	instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Equal(t, 2, harness.calls)
}

func TestConditionalBranch_InvalidTargetFailsInstance(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		conditionalTask("task-branch", 1, []models.BranchRule{
			{Field: "lead.stage", Operator: models.OperatorEquals, Value: "new", NextOrder: 99},
		}),
		automatedTask("task-b", 2),
	)

	instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusFailed, instance.Status)
	assert.Equal(t, 0, harness.calls)
}

func TestConditionalBranch_SelfOrBackwardTargetFailsInstance(t *testing.T) {
	t.Parallel()

	// Templates saved through the service reject these rules; a template
	// written directly to persistence must still terminate, with the
	// instance failed instead of the run loop revisiting the conditional.
	tests := []struct {
		name        string
		branchOrder int
		nextOrder   int
	}{
		{name: "self target", branchOrder: 1, nextOrder: 1},
		{name: "backward target", branchOrder: 2, nextOrder: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			harness := newHarness(t, false)

			tasks := []*models.TaskDefinition{
				conditionalTask("task-branch", tt.branchOrder, []models.BranchRule{
					{Field: "lead.stage", Operator: models.OperatorEquals, Value: "new", NextOrder: tt.nextOrder},
				}),
			}
			if tt.branchOrder == 2 {
				tasks = append(tasks, automatedTask("task-a", 1))
			}

			harness.seed(t, tasks...)

			instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
			require.NoError(t, err)

			assert.Equal(t, models.InstanceStatusFailed, instance.Status)

			rows := harness.executions(t, instance.ID)

			var branchRows int

			for _, row := range rows {
				if row.TaskID == "task-branch" {
					branchRows++
					assert.Equal(t, models.ExecutionStatusFailed, row.Status)
				}
			}

			assert.Equal(t, 1, branchRows)
		})
	}
}

func TestStartInstance_EmptyTemplateCompletesImmediately(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t)

	instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.NotNil(t, instance.CompletedAt)
	assert.Empty(t, harness.executions(t, instance.ID))
}

func TestAdvance_NoOpForNonRunningInstance(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, false)
	harness.seed(t,
		automatedTask("task-a", 1),
		gateTask("task-b", 2),
	)

	ctx := context.Background()

	instance, err := harness.engine.StartInstance(ctx, "template-1", "lead-1", testOwner)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusAwaitingHITL, instance.Status)

	// Duplicate advancement delivery leaves the paused instance untouched.
	require.NoError(t, harness.engine.Advance(ctx, instance.ID))

	final, err := harness.persistence.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusAwaitingHITL, final.Status)
	assert.Equal(t, 1, harness.calls)
	assert.Len(t, harness.executions(t, instance.ID), 2)
}

type capturingFactory struct {
	countingFactory

	received map[string]any
}

func (f *capturingFactory) Create(parameters map[string]any) (protocol.Executor, error) {
	f.received = parameters

	return f.countingFactory.Create(parameters)
}

func TestRunAutomated_RendersTemplatedParameters(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())

	harness := &testHarness{persistence: store}

	factory := &capturingFactory{countingFactory: countingFactory{id: "test", calls: &harness.calls}}
	reg := registry.NewRegistry(logger)
	reg.RegisterExecutor(factory)

	harness.engine = engine.NewEngine(store, reg, nil, nil, nil, logger)

	task := automatedTask("task-a", 1)
	task.Config.Automated.Parameters = map[string]any{
		"message": "Hi {{.lead.name}}, next step for your {{.lead.stage}} inquiry",
		"static":  "unchanged",
	}
	harness.seed(t, task)

	instance, err := harness.engine.StartInstance(context.Background(), "template-1", "lead-1", testOwner)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Equal(t, "Hi Ada Lovelace, next step for your new inquiry", factory.received["message"])
	assert.Equal(t, "unchanged", factory.received["static"])
}
