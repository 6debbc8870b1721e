package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/erp/client/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *captureBus) Publish(_ context.Context, events ...shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func newTestOrchestrator() (*Orchestrator, *captureBus) {
	bus := &captureBus{}
	return NewOrchestrator(bus, zap.NewNop()), bus
}

func approvedItems() []Item {
	return []Item{
		{DetailID: 1, Name: "bearing", Unit: "pcs", Approved: true},
		{DetailID: 2, Name: "bolt M6", Unit: "pcs", Approved: true},
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]Step]bool{
		{StepRequisition, StepApproval}:    true,
		{StepApproval, StepProcurement}:    true,
		{StepApproval, StepRequisition}:    true,
		{StepProcurement, StepConfirmation}: true,
		{StepConfirmation, StepShipping}:   true,
		{StepShipping, StepReceiving}:      true,
		{StepReceiving, StepStorage}:       true,
		{StepStorage, StepAcceptance}:      true,
		{StepAcceptance, StepInventory}:    true,
		{StepInventory, StepAccounting}:    true,
	}

	for _, from := range Steps() {
		for _, to := range Steps() {
			want := allowed[[2]Step{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestAccountingIsTerminal(t *testing.T) {
	assert.True(t, StepAccounting.IsTerminal())
	assert.Empty(t, NextSteps(StepAccounting))
}

func TestValidateRejectsUnknownTransitions(t *testing.T) {
	o, _ := newTestOrchestrator()

	// From requisition, every non-approval target must fail validation
	// and leave the current step untouched.
	for _, target := range Steps() {
		if target == StepApproval || target == StepRequisition {
			continue
		}
		assert.False(t, o.ValidateTransition(StepRequisition, target), "requisition -> %s", target)
		assert.False(t, o.TransitionTo(target, Patch{}))
		assert.Equal(t, StepRequisition, o.CurrentStep())
	}
}

func TestTransitionToAppendsHistoryAndAdvances(t *testing.T) {
	o, bus := newTestOrchestrator()
	o.Initialize(Patch{Items: approvedItems()})

	require.True(t, o.TransitionTo(StepApproval, Patch{}))
	assert.Equal(t, StepApproval, o.CurrentStep())

	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, StepRequisition, history[0].FromStep)
	assert.Equal(t, StepApproval, history[0].ToStep)
	assert.True(t, history[0].Success)
	assert.Equal(t, "in_review", o.Data().Status)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	require.Len(t, bus.events, 1)
	assert.Equal(t, shared.EventWorkflowTransition, bus.events[0].EventType())
	assert.Equal(t, "approval", bus.events[0].Payload()["to_step"])
}

func TestApprovalRequiresItems(t *testing.T) {
	o, _ := newTestOrchestrator()

	assert.False(t, o.TransitionTo(StepApproval, Patch{}))
	assert.Equal(t, StepRequisition, o.CurrentStep())
	require.NotEmpty(t, o.Errors())
	assert.Contains(t, o.Errors()[0], "at least one item")
	assert.Empty(t, o.History(), "validation failure records no transition")
}

func TestProcurementRequiresAllItemsApproved(t *testing.T) {
	o, _ := newTestOrchestrator()
	items := approvedItems()
	items[1].Approved = false
	o.Initialize(Patch{Items: items})
	require.True(t, o.TransitionTo(StepApproval, Patch{}))

	assert.False(t, o.TransitionTo(StepProcurement, Patch{}))
	assert.Equal(t, StepApproval, o.CurrentStep())
	require.NotEmpty(t, o.Errors())
	assert.Contains(t, o.Errors()[0], "All items must be approved")
}

func TestFullLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.Initialize(Patch{Items: approvedItems()})

	// Preconditions are checked against the data before the patch is
	// merged, so each step's requirements are supplied one hop earlier.
	steps := []struct {
		target Step
		patch  Patch
	}{
		{StepApproval, Patch{}},
		{StepProcurement, Patch{PurchaseOrderID: Ptr("PO-2025-0001")}},
		{StepConfirmation, Patch{}},
		{StepShipping, Patch{TrackingInfo: &Tracking{Carrier: "DHL", TrackingNo: "JD0001"}}},
		{StepReceiving, Patch{ReceivedItems: []string{"bearing"}}},
		{StepStorage, Patch{StorageAssignments: []string{"A-01-2"}}},
		{StepAcceptance, Patch{AcceptedItems: []string{"bearing"}}},
		{StepInventory, Patch{InventoryRecords: []string{"MV-1"}}},
		{StepAccounting, Patch{}},
	}

	for _, s := range steps {
		require.True(t, o.TransitionTo(s.target, s.patch), "to %s: %v", s.target, o.Errors())
	}

	assert.Equal(t, StepAccounting, o.CurrentStep())
	assert.Equal(t, "paid", o.Data().Status)
	assert.Len(t, o.History(), len(steps))
	for _, step := range Steps()[1:] {
		assert.True(t, o.IsStepCompleted(step), "step %s", step)
	}

	progress := o.Progress()
	assert.Equal(t, 10, progress.Current)
	assert.Equal(t, 100, progress.Percentage)
}

func TestShippingRequiresConfirmedStatus(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.Initialize(Patch{Items: approvedItems()})
	require.True(t, o.TransitionTo(StepApproval, Patch{}))
	require.True(t, o.TransitionTo(StepProcurement, Patch{}))

	// Status is "approved" at this point, not "confirmed"
	assert.False(t, o.ValidateTransition(StepConfirmation, StepShipping))
	assert.Contains(t, o.Errors()[0], "confirmed before shipping")
}

func TestGoBack(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.Initialize(Patch{Items: approvedItems()})
	require.True(t, o.TransitionTo(StepApproval, Patch{}))

	// Approval can be reached only from requisition
	require.True(t, o.GoBack())
	assert.Equal(t, StepRequisition, o.CurrentStep())

	history := o.History()
	require.Len(t, history, 2)
	assert.Equal(t, StepApproval, history[1].FromStep)
	assert.Equal(t, StepRequisition, history[1].ToStep)
}

func TestGoBackPicksLatestDefinedPredecessor(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.JumpToStep(StepRequisition, Patch{})

	// Requisition is a destination of approval's rejection path; from the
	// initial step there is no predecessor other than approval.
	require.True(t, o.GoBack())
	assert.Equal(t, StepApproval, o.CurrentStep())
}

func TestGoBackSkipsPreconditionChecks(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.JumpToStep(StepShipping, Patch{})

	// Going back to confirmation must succeed even though the forward
	// preconditions for confirmation are not satisfiable anymore.
	require.True(t, o.GoBack())
	assert.Equal(t, StepConfirmation, o.CurrentStep())
}

func TestJumpToStepBypassesChain(t *testing.T) {
	o, _ := newTestOrchestrator()

	require.True(t, o.JumpToStep(StepAccounting, Patch{}))
	assert.Equal(t, StepAccounting, o.CurrentStep())
	assert.Equal(t, "paid", o.Data().Status)
	assert.Empty(t, o.History(), "jump records no transition")
}

func TestJumpToUnknownStepFails(t *testing.T) {
	o, _ := newTestOrchestrator()

	assert.False(t, o.JumpToStep(Step("teleport"), Patch{}))
	assert.Equal(t, StepRequisition, o.CurrentStep())
	require.NotEmpty(t, o.Errors())
	assert.Contains(t, o.Errors()[0], "Invalid step")
}

func TestProgressToNext(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.Initialize(Patch{Items: approvedItems()})

	require.True(t, o.ProgressToNext(Patch{}))
	assert.Equal(t, StepApproval, o.CurrentStep())

	o.JumpToStep(StepAccounting, Patch{})
	assert.False(t, o.ProgressToNext(Patch{}))
	assert.Contains(t, o.Errors()[0], "No next step")
}

func TestResetClearsEverything(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.Initialize(Patch{Items: approvedItems()})
	require.True(t, o.TransitionTo(StepApproval, Patch{}))

	o.Reset()
	assert.Equal(t, StepRequisition, o.CurrentStep())
	assert.Empty(t, o.History())
	assert.Empty(t, o.Errors())
	assert.Equal(t, "draft", o.Data().Status)
}

func TestSummary(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.Initialize(Patch{Items: approvedItems()})
	require.True(t, o.TransitionTo(StepApproval, Patch{}))

	summary := o.Summary()
	assert.Equal(t, StepApproval, summary.CurrentStep.ID)
	assert.Equal(t, 2, summary.Progress.Current)
	assert.Len(t, summary.History, 1)
	assert.False(t, summary.Transitioning)
}
