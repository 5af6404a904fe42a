package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence/memory"
)

func TestSchedulerResumesDueExecutions(t *testing.T) {
	store := memory.NewPersistence()
	reg := newTestRegistry()

	after := &scriptedHandler{actionType: "after"}
	reg.Register(after)

	wf := &models.Workflow{
		ID:             "wf-due",
		OrganizationID: "org-1",
		Name:           "due for resume",
		Nodes: []*models.Node{
			node("start", models.NodeTypeTrigger, "", nil),
			node("pause", models.NodeTypeAction, "pause", map[string]any{}),
			node("after", models.NodeTypeAction, "after", map[string]any{}),
		},
		Edges: []*models.Edge{
			edge("start", "pause", ""),
			edge("pause", "after", ""),
		},
	}
	seedWorkflow(t, store, wf)

	// Seed an execution already suspended on the pause node, past due.
	execution := seedExecution(t, store, wf, nil)
	claimed, err := store.Executions().Claim(context.Background(), execution.ID, "seed-token")
	require.NoError(t, err)

	pauseID := "pause"
	resumeAt := time.Now().UTC().Add(-time.Minute)
	claimed.Status = models.ExecutionStatusSuspended
	claimed.CurrentNodeID = &pauseID
	claimed.ResumeAt = &resumeAt
	require.NoError(t, store.Executions().Save(context.Background(), claimed, "seed-token"))

	walker := NewWalker("scheduler-1", store, reg, nil, testLogger(), nil)
	scheduler := NewScheduler(store, walker, testLogger())

	scheduler.poll(context.Background())
	scheduler.wg.Wait()

	assert.Equal(t, 1, after.calls)

	stored, err := store.Executions().ByID(context.Background(), "org-1", execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
}

func TestSchedulerPollSkipsFutureExecutions(t *testing.T) {
	store := memory.NewPersistence()
	reg := newTestRegistry()

	after := &scriptedHandler{actionType: "after"}
	reg.Register(after)

	wf := &models.Workflow{
		ID:             "wf-future",
		OrganizationID: "org-1",
		Name:           "not yet due",
		Nodes: []*models.Node{
			node("start", models.NodeTypeTrigger, "", nil),
			node("after", models.NodeTypeAction, "after", map[string]any{}),
		},
		Edges: []*models.Edge{edge("start", "after", "")},
	}
	seedWorkflow(t, store, wf)

	execution := seedExecution(t, store, wf, nil)
	claimed, err := store.Executions().Claim(context.Background(), execution.ID, "seed-token")
	require.NoError(t, err)

	startID := "start"
	resumeAt := time.Now().UTC().Add(time.Hour)
	claimed.Status = models.ExecutionStatusSuspended
	claimed.CurrentNodeID = &startID
	claimed.ResumeAt = &resumeAt
	require.NoError(t, store.Executions().Save(context.Background(), claimed, "seed-token"))

	walker := NewWalker("scheduler-1", store, reg, nil, testLogger(), nil)
	scheduler := NewScheduler(store, walker, testLogger())

	scheduler.poll(context.Background())
	scheduler.wg.Wait()

	assert.Equal(t, 0, after.calls)
}
