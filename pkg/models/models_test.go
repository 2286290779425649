package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate() *WorkflowTemplate {
	return &WorkflowTemplate{
		ID:       "tpl-1",
		Name:     "Buyer follow-up",
		Industry: IndustryRealEstate,
		OwnerID:  "user-1",
		IsActive: true,
		Tasks: []*TaskDefinition{
			{ID: "t-3", Name: "Send CMA", Type: TaskTypeAutomated, DisplayOrder: 3},
			{ID: "t-1", Name: "Research lead", Type: TaskTypeAutomated, DisplayOrder: 1},
			{ID: "t-2", Name: "Approve outreach", Type: TaskTypeGate, DisplayOrder: 2},
		},
	}
}

func TestWorkflowTemplate_FirstTask(t *testing.T) {
	tpl := testTemplate()

	first := tpl.FirstTask()
	require.NotNil(t, first)
	assert.Equal(t, "t-1", first.ID)

	empty := &WorkflowTemplate{}
	assert.Nil(t, empty.FirstTask())
}

func TestWorkflowTemplate_NextAfter(t *testing.T) {
	tpl := testTemplate()

	next := tpl.NextAfter(1)
	require.NotNil(t, next)
	assert.Equal(t, "t-2", next.ID)

	assert.Nil(t, tpl.NextAfter(3))
}

func TestWorkflowTemplate_Lookups(t *testing.T) {
	tpl := testTemplate()

	assert.Equal(t, "t-2", tpl.TaskByID("t-2").ID)
	assert.Nil(t, tpl.TaskByID("missing"))
	assert.Equal(t, "t-3", tpl.TaskByOrder(3).ID)
	assert.Nil(t, tpl.TaskByOrder(99))
}

func TestWorkflowTemplate_SortTasks(t *testing.T) {
	tpl := testTemplate()
	tpl.SortTasks()

	orders := make([]int, 0, len(tpl.Tasks))
	for _, task := range tpl.Tasks {
		orders = append(orders, task.DisplayOrder)
	}

	assert.Equal(t, []int{1, 2, 3}, orders)
}

func TestInstanceStatus_Transitions(t *testing.T) {
	assert.True(t, InstanceStatusCompleted.IsTerminal())
	assert.True(t, InstanceStatusRejected.IsTerminal())
	assert.True(t, InstanceStatusFailed.IsTerminal())
	assert.False(t, InstanceStatusRunning.IsTerminal())
	assert.False(t, InstanceStatusPaused.IsTerminal())

	assert.True(t, InstanceStatusRunning.IsActive())
	assert.True(t, InstanceStatusPaused.IsActive())
	assert.True(t, InstanceStatusAwaitingHITL.IsActive())
	assert.False(t, InstanceStatusCompleted.IsActive())
}

func TestValidIndustry(t *testing.T) {
	assert.True(t, ValidIndustry(IndustryDental))
	assert.False(t, ValidIndustry(Industry("aviation")))
}
