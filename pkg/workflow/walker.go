// Package workflow contains the execution engine: the walker that advances
// one execution through its graph, and the scheduler that resumes suspended
// executions when their time comes.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/loopworklabs/loopwork/pkg/eventbus"
	"github.com/loopworklabs/loopwork/pkg/events"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/otelhelper"
	"github.com/loopworklabs/loopwork/pkg/persistence"
	"github.com/loopworklabs/loopwork/pkg/registry"
)

// maxSteps bounds a single run so a corrupt graph with an unbounded cycle
// cannot pin a worker forever.
const maxSteps = 1000

// Walker advances a single execution strictly sequentially: claim, step
// node by node, persist after every step, release on suspend or terminate.
// Many walkers run concurrently across executions; never two on the same
// execution, which the claim protocol guarantees.
type Walker struct {
	workerID  string
	store     persistence.Persistence
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer

	// now is swapped in tests.
	now func() time.Time
}

func NewWalker(workerID string, store persistence.Persistence, reg *registry.Registry, publisher eventbus.EventPublisher, logger *slog.Logger, tracer trace.Tracer) *Walker {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("loopwork")
	}

	return &Walker{
		workerID:  workerID,
		store:     store,
		registry:  reg,
		publisher: publisher,
		logger:    logger.With("module", "walker", "worker_id", workerID),
		tracer:    tracer,
		now:       time.Now,
	}
}

// Run claims the execution and advances it until it suspends or terminates.
// A claim lost to another worker returns persistence.ErrExecutionClaimed;
// callers treat that as benign.
func (w *Walker) Run(ctx context.Context, executionID string) error {
	claimToken := uuid.New().String()

	execution, err := w.store.Executions().Claim(ctx, executionID, claimToken)
	if err != nil {
		return err
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String(otelhelper.OrganizationIDKey, execution.OrganizationID),
		attribute.String(otelhelper.WorkerIDKey, w.workerID),
	)
	defer span.End()

	logger := w.logger.With("execution_id", execution.ID, "workflow_id", execution.WorkflowID)

	wf, err := w.store.Workflows().ByID(ctx, execution.OrganizationID, execution.WorkflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Workflow load failed", "error", err)

		return w.fail(ctx, wf, execution, claimToken, "", models.ErrorKindEngine,
			fmt.Sprintf("workflow %s not loadable: %v", execution.WorkflowID, err))
	}

	node, result := w.startNode(wf, execution)
	if node == nil {
		return w.fail(ctx, wf, execution, claimToken, "", models.ErrorKindEngine, result)
	}

	if execution.CurrentNodeID != nil && !execution.Retrying {
		w.publish(ctx, execution, events.ExecutionResumed{
			BaseEvent:   w.baseEvent(events.ExecutionResumedEvent, execution),
			ExecutionID: execution.ID,
			NodeID:      node.ID,
		})
	}

	return w.advance(ctx, logger, wf, execution, claimToken, node)
}

// startNode resolves where this run begins: the trigger node for a fresh
// execution, the same node again for a retry, or the node after the one
// that suspended. The string return carries the failure message when no
// node can be resolved.
func (w *Walker) startNode(wf *models.Workflow, execution *models.Execution) (*models.Node, string) {
	if execution.CurrentNodeID == nil {
		trigger, ok := wf.TriggerNode()
		if !ok {
			return nil, "workflow has no trigger node"
		}

		return trigger, ""
	}

	current, ok := wf.NodeByID(*execution.CurrentNodeID)
	if !ok {
		return nil, fmt.Sprintf("current node %s not in workflow", *execution.CurrentNodeID)
	}

	if execution.Retrying {
		return current, ""
	}

	// A timed suspension counts its node as complete; resume after it.
	nextID, ok := wf.NextNodeID(current.ID, "")
	if !ok {
		return nil, fmt.Sprintf("suspended node %s has no outgoing edge", current.ID)
	}

	next, ok := wf.NodeByID(nextID)
	if !ok {
		return nil, fmt.Sprintf("edge from %s targets missing node %s", current.ID, nextID)
	}

	return next, ""
}

func (w *Walker) advance(ctx context.Context, logger *slog.Logger, wf *models.Workflow, execution *models.Execution, claimToken string, node *models.Node) error {
	for step := 0; ; step++ {
		if step >= maxSteps {
			return w.fail(ctx, wf, execution, claimToken, node.ID, models.ErrorKindEngine,
				fmt.Sprintf("execution exceeded %d steps, aborting", maxSteps))
		}

		// Cancellation is cooperative: poll before every node step.
		cancelled, err := w.cancelled(ctx, execution)
		if err != nil {
			logger.WarnContext(ctx, "Status poll failed, continuing", "error", err)
		} else if cancelled {
			logger.InfoContext(ctx, "Execution cancelled, stopping")
			w.publish(ctx, execution, events.ExecutionCancelled{
				BaseEvent:   w.baseEvent(events.ExecutionCancelledEvent, execution),
				ExecutionID: execution.ID,
			})

			return nil
		}

		if !node.Enabled {
			next, done, err := w.follow(ctx, wf, execution, claimToken, node, "")
			if err != nil || done {
				return err
			}

			node = next

			continue
		}

		stepStarted := w.now()

		result, err := w.step(ctx, logger, execution, node)
		if err != nil {
			// Unknown action type: a corrupt workflow definition.
			return w.fail(ctx, wf, execution, claimToken, node.ID, models.ErrorKindEngine, result.Error)
		}

		if result.Output != nil {
			execution.Context.SetStep(node.ID, result.Output)
		}

		switch {
		case result.Success && result.ShouldContinue:
			execution.RetryCount = 0
			execution.Retrying = false

			w.publish(ctx, execution, events.NodeCompleted{
				BaseEvent:   w.baseEvent(events.NodeCompletedEvent, execution),
				ExecutionID: execution.ID,
				NodeID:      node.ID,
				ActionType:  node.HandlerType(),
				DurationMs:  w.now().Sub(stepStarted).Milliseconds(),
			})

			next, done, err := w.follow(ctx, wf, execution, claimToken, node, result.NextBranch)
			if err != nil || done {
				return err
			}

			node = next

		case result.Success:
			return w.suspend(ctx, wf, execution, claimToken, node, result)

		case result.ShouldRetry:
			return w.scheduleRetry(ctx, execution, claimToken, node, result)

		default:
			w.publishNodeFailed(ctx, execution, node, result)

			return w.fail(ctx, wf, execution, claimToken, node.ID, result.Kind, result.Error)
		}
	}
}

// step dispatches one node with a span around it.
func (w *Walker) step(ctx context.Context, logger *slog.Logger, execution *models.Execution, node *models.Node) (models.NodeResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "execution.step",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.ActionTypeKey, node.HandlerType()),
		attribute.Int("node.attempt", execution.RetryCount),
	)
	defer span.End()

	execution.Context.NodeID = node.ID

	execution.Context.Attempt = 0
	if execution.Retrying {
		execution.Context.Attempt = execution.RetryCount
	}

	logger.DebugContext(ctx, "Dispatching node",
		"node_id", node.ID, "action_type", node.HandlerType(), "attempt", execution.Context.Attempt)

	return w.registry.Dispatch(ctx, node, execution.Context)
}

// follow resolves the next node after a completed one and persists the
// advance. done is true when the branch terminated and the execution
// completed.
func (w *Walker) follow(ctx context.Context, wf *models.Workflow, execution *models.Execution, claimToken string, node *models.Node, branch string) (*models.Node, bool, error) {
	nextID, ok := wf.NextNodeID(node.ID, branch)
	if !ok {
		return nil, true, w.complete(ctx, wf, execution, claimToken)
	}

	next, exists := wf.NodeByID(nextID)
	if !exists {
		return nil, true, w.fail(ctx, wf, execution, claimToken, node.ID, models.ErrorKindEngine,
			fmt.Sprintf("edge from %s targets missing node %s", node.ID, nextID))
	}

	execution.CurrentNodeID = &next.ID
	if err := w.save(ctx, execution, claimToken); err != nil {
		return nil, true, err
	}

	return next, false, nil
}

func (w *Walker) complete(ctx context.Context, wf *models.Workflow, execution *models.Execution, claimToken string) error {
	now := w.now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now
	execution.CurrentNodeID = nil

	if err := w.save(ctx, execution, claimToken); err != nil {
		return err
	}

	w.recordOutcome(ctx, wf, execution, true)
	w.publish(ctx, execution, events.ExecutionCompleted{
		BaseEvent:   w.baseEvent(events.ExecutionCompletedEvent, execution),
		ExecutionID: execution.ID,
		Duration:    now.Sub(execution.StartedAt),
	})

	return nil
}

func (w *Walker) suspend(ctx context.Context, wf *models.Workflow, execution *models.Execution, claimToken string, node *models.Node, result models.NodeResult) error {
	if result.ResumeAt == nil {
		return w.fail(ctx, wf, execution, claimToken, node.ID, models.ErrorKindEngine,
			fmt.Sprintf("node %s suspended without a resume time", node.ID))
	}

	execution.Status = models.ExecutionStatusSuspended
	execution.CurrentNodeID = &node.ID
	execution.ResumeAt = result.ResumeAt
	execution.Retrying = false
	execution.RetryCount = 0

	if err := w.save(ctx, execution, claimToken); err != nil {
		return err
	}

	w.publish(ctx, execution, events.ExecutionSuspended{
		BaseEvent:   w.baseEvent(events.ExecutionSuspendedEvent, execution),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		ResumeAt:    *result.ResumeAt,
	})

	return nil
}

// scheduleRetry re-queues the same node after the backoff delay. A retry is
// a short suspension flagged Retrying so the resume re-executes the node
// instead of advancing past it.
func (w *Walker) scheduleRetry(ctx context.Context, execution *models.Execution, claimToken string, node *models.Node, result models.NodeResult) error {
	resumeAt := w.now().UTC().Add(result.RetryDelay)

	execution.Status = models.ExecutionStatusSuspended
	execution.CurrentNodeID = &node.ID
	execution.ResumeAt = &resumeAt
	execution.Retrying = true
	execution.RetryCount++

	if err := w.save(ctx, execution, claimToken); err != nil {
		return err
	}

	w.publishNodeFailed(ctx, execution, node, result)
	w.publish(ctx, execution, events.ExecutionSuspended{
		BaseEvent:   w.baseEvent(events.ExecutionSuspendedEvent, execution),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		ResumeAt:    resumeAt,
		Retrying:    true,
	})

	return nil
}

func (w *Walker) fail(ctx context.Context, wf *models.Workflow, execution *models.Execution, claimToken, nodeID string, kind models.ErrorKind, message string) error {
	otelhelper.SetError(trace.SpanFromContext(ctx), errors.New(message),
		attribute.String(otelhelper.NodeIDKey, nodeID),
		attribute.String("error.kind", string(kind)),
	)

	now := w.now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.CompletedAt = &now
	execution.ErrorMessage = message
	execution.FailedNodeID = nodeID

	if err := w.save(ctx, execution, claimToken); err != nil {
		return err
	}

	w.recordOutcome(ctx, wf, execution, false)
	w.publish(ctx, execution, events.ExecutionFailed{
		BaseEvent:   w.baseEvent(events.ExecutionFailedEvent, execution),
		ExecutionID: execution.ID,
		NodeID:      nodeID,
		Error:       message,
		Kind:        kind,
	})

	return nil
}

func (w *Walker) cancelled(ctx context.Context, execution *models.Execution) (bool, error) {
	stored, err := w.store.Executions().ByID(ctx, execution.OrganizationID, execution.ID)
	if err != nil {
		return false, err
	}

	return stored.Status == models.ExecutionStatusCancelled, nil
}

// save persists the execution under the claim. A lost claim is surfaced
// unchanged so the caller stops advancing.
func (w *Walker) save(ctx context.Context, execution *models.Execution, claimToken string) error {
	err := w.store.Executions().Save(ctx, execution, claimToken)
	if err != nil && errors.Is(err, persistence.ErrClaimLost) {
		w.logger.Warn("Claim lost, stopping", "execution_id", execution.ID)
	}

	return err
}

func (w *Walker) recordOutcome(ctx context.Context, wf *models.Workflow, execution *models.Execution, succeeded bool) {
	if wf == nil {
		return
	}

	if err := w.store.Workflows().RecordOutcome(ctx, execution.OrganizationID, wf.ID, succeeded); err != nil {
		w.logger.WarnContext(ctx, "Stats update failed", "workflow_id", wf.ID, "error", err)
	}
}

func (w *Walker) publishNodeFailed(ctx context.Context, execution *models.Execution, node *models.Node, result models.NodeResult) {
	w.publish(ctx, execution, events.NodeFailed{
		BaseEvent:   w.baseEvent(events.NodeFailedEvent, execution),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		ActionType:  node.HandlerType(),
		Error:       result.Error,
		Kind:        result.Kind,
		Attempt:     execution.Context.Attempt,
	})
}

func (w *Walker) publish(ctx context.Context, execution *models.Execution, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	if err := w.publisher.Publish(ctx, execution.ID, event); err != nil {
		w.logger.WarnContext(ctx, "Event publish failed",
			"execution_id", execution.ID, "event_type", event.GetType(), "error", err)
	}
}

func (w *Walker) baseEvent(eventType events.EventType, execution *models.Execution) events.BaseEvent {
	return events.BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      w.now().UTC(),
		OrganizationID: execution.OrganizationID,
		WorkflowID:     execution.WorkflowID,
		WorkerID:       w.workerID,
	}
}
