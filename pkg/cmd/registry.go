package cmd

import (
	"context"
	"log/slog"

	"github.com/loopworklabs/loopwork/pkg/actions/aigen"
	"github.com/loopworklabs/loopwork/pkg/actions/flow"
	"github.com/loopworklabs/loopwork/pkg/actions/logic"
	"github.com/loopworklabs/loopwork/pkg/actions/loop"
	"github.com/loopworklabs/loopwork/pkg/actions/message"
	"github.com/loopworklabs/loopwork/pkg/actions/record"
	"github.com/loopworklabs/loopwork/pkg/actions/schedule"
	"github.com/loopworklabs/loopwork/pkg/actions/wait"
	"github.com/loopworklabs/loopwork/pkg/actions/webhook"
	"github.com/loopworklabs/loopwork/pkg/capabilities"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence"
	"github.com/loopworklabs/loopwork/pkg/registry"
)

// Capabilities bundles the external services handlers consume. Zero-value
// fields fall back to the in-process development implementations.
type Capabilities struct {
	Messenger capabilities.Messenger
	Records   capabilities.RecordStore
	Generator capabilities.Generator
}

func (c *Capabilities) withDefaults(logger *slog.Logger) {
	if c.Messenger == nil {
		c.Messenger = capabilities.NewLogMessenger(logger)
	}

	if c.Records == nil {
		c.Records = capabilities.NewMemoryRecordStore()
	}

	if c.Generator == nil {
		c.Generator = capabilities.TemplateGenerator{}
	}
}

// NewRegistry builds the action registry with the full handler vocabulary.
// Node-type aliases let non-action nodes (condition, switch, wait, loop,
// webhook, ai) dispatch to the same handlers as their action counterparts.
func NewRegistry(logger *slog.Logger, store persistence.Persistence, recorder registry.ActivityRecorder, caps Capabilities) *registry.Registry {
	caps.withDefaults(logger)

	reg := registry.NewRegistry(logger, recorder)

	reg.Register(flow.TriggerHandler{})
	reg.Register(flow.MergeHandler{})
	reg.Register(flow.NoteHandler{})

	reg.Register(message.NewSendEmailHandler(caps.Messenger, logger))
	reg.Register(message.NewSendSMSHandler(caps.Messenger, logger))
	reg.Register(message.NewSendChatHandler(caps.Messenger, logger))

	reg.Register(record.NewUpdateHandler(caps.Records, logger))
	reg.Register(record.NewAddTagHandler(caps.Records, logger))
	reg.Register(record.NewRemoveTagHandler(caps.Records, logger))
	reg.Register(record.NewScoreHandler(caps.Records, logger))

	webhookHandler := webhook.NewHandler(logger)
	reg.Register(webhookHandler)
	reg.RegisterAs("webhook", webhookHandler)

	waitHandler := wait.NewHandler(logger, workflowHours(store))
	reg.Register(waitHandler)
	reg.Register(schedule.NewHandler(logger))

	conditionalHandler := logic.NewConditionalHandler(logger)
	reg.Register(conditionalHandler)
	reg.RegisterAs("condition", conditionalHandler)
	reg.Register(logic.NewSwitchHandler(logger))

	reg.Register(loop.NewHandler(logger))

	generateHandler := aigen.NewHandler(caps.Generator, logger)
	reg.Register(generateHandler)
	reg.RegisterAs("ai", generateHandler)

	return reg
}

// workflowHours resolves the per-workflow business hours window for the
// wait handler. A load failure falls back to the default window.
func workflowHours(store persistence.Persistence) wait.HoursSource {
	return func(ctx context.Context, organizationID, workflowID string) *models.BusinessHours {
		workflow, err := store.Workflows().ByID(ctx, organizationID, workflowID)
		if err != nil {
			return nil
		}

		return workflow.BusinessHours
	}
}
