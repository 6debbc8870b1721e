package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/client/internal/domain/shared"
	"go.uber.org/zap"
)

// Orchestrator drives one business object through the procurement
// lifecycle. All mutation goes through TransitionTo / JumpToStep; every
// attempt, successful or not, is appended to the history.
//
// Validation failures never raise: they accumulate in the error list so
// several failed preconditions can be surfaced together.
type Orchestrator struct {
	mu            sync.Mutex
	current       Step
	data          Data
	history       []Transition
	errs          []string
	transitioning bool
	bus           shared.EventPublisher
	logger        *zap.Logger
}

// NewOrchestrator creates an orchestrator positioned at the requisition
// step with empty workflow data.
func NewOrchestrator(bus shared.EventPublisher, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{bus: bus, logger: logger}
	o.initialize(Patch{})
	return o
}

// Initialize resets the workflow to the requisition step, seeding the
// data from the given patch. History and errors are cleared.
func (o *Orchestrator) Initialize(initial Patch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.initialize(initial)
}

func (o *Orchestrator) initialize(initial Patch) {
	now := time.Now()
	o.current = StepRequisition
	o.data = Data{
		Status:    "draft",
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.data.merge(initial)
	o.history = nil
	o.errs = nil
}

// CurrentStep returns the step the workflow is currently at
func (o *Orchestrator) CurrentStep() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Data returns a copy of the current workflow data
func (o *Orchestrator) Data() Data {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.data
}

// Errors returns the validation errors collected by the last operation
func (o *Orchestrator) Errors() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	errs := make([]string, len(o.errs))
	copy(errs, o.errs)
	return errs
}

// History returns a copy of the transition history
func (o *Orchestrator) History() []Transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	history := make([]Transition, len(o.history))
	copy(history, o.history)
	return history
}

// CanTransitionTo reports whether the transition table allows moving from
// the current step to the target. Preconditions are not checked here.
func (o *Orchestrator) CanTransitionTo(target Step) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return CanTransition(o.current, target)
}

// ValidateTransition checks the transition table and the target step's
// preconditions against the current workflow data. Each failure appends a
// human-readable reason to the error list; it returns true only when the
// transition is fully legal.
func (o *Orchestrator) ValidateTransition(from, to Step) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.validate(from, to)
}

func (o *Orchestrator) validate(from, to Step) bool {
	o.errs = nil

	if !CanTransition(from, to) {
		o.errs = append(o.errs, fmt.Sprintf("Cannot transition from %s to %s", from, to))
		return false
	}

	switch to {
	case StepApproval:
		if len(o.data.Items) == 0 {
			o.errs = append(o.errs, "Requisition must have at least one item")
		}
	case StepProcurement:
		for _, item := range o.data.Items {
			if !item.Approved {
				o.errs = append(o.errs, "All items must be approved before creating purchase orders")
				break
			}
		}
	case StepConfirmation:
		if o.data.PurchaseOrderID == "" {
			o.errs = append(o.errs, "Purchase order must be created before confirmation")
		}
	case StepShipping:
		if o.data.Status != "confirmed" {
			o.errs = append(o.errs, "Purchase order must be confirmed before shipping")
		}
	case StepReceiving:
		if o.data.TrackingInfo == nil {
			o.errs = append(o.errs, "Shipping information required before receiving")
		}
	case StepStorage:
		if len(o.data.ReceivedItems) == 0 {
			o.errs = append(o.errs, "Items must be received before storage assignment")
		}
	case StepAcceptance:
		if len(o.data.StorageAssignments) == 0 {
			o.errs = append(o.errs, "Items must be stored before acceptance")
		}
	case StepInventory:
		if len(o.data.AcceptedItems) == 0 {
			o.errs = append(o.errs, "Items must be accepted before inventory management")
		}
	case StepAccounting:
		if len(o.data.InventoryRecords) == 0 {
			o.errs = append(o.errs, "Inventory records required before billing")
		}
	}

	return len(o.errs) == 0
}

// TransitionTo validates and, only when valid, merges the patch into the
// workflow data, stamps the target step's status and a fresh timestamp,
// appends a successful Transition, advances the current step, and
// publishes a workflow.transition event. An apply-phase failure appends a
// failed Transition instead and leaves the current step unchanged.
func (o *Orchestrator) TransitionTo(target Step, patch Patch) bool {
	o.mu.Lock()

	from := o.current
	if !o.validate(from, target) {
		o.mu.Unlock()
		return false
	}

	o.transitioning = true

	if err := o.apply(target, patch); err != nil {
		o.history = append(o.history, Transition{
			FromStep:  from,
			ToStep:    target,
			Timestamp: time.Now(),
			Payload:   patch,
			Success:   false,
			Error:     err.Error(),
		})
		o.errs = append(o.errs, fmt.Sprintf("Failed to transition to %s: %v", target, err))
		o.transitioning = false
		o.mu.Unlock()
		o.logger.Warn("workflow transition failed",
			zap.String("from", from.String()),
			zap.String("to", target.String()),
			zap.Error(err),
		)
		return false
	}

	o.history = append(o.history, Transition{
		FromStep:  from,
		ToStep:    target,
		Timestamp: time.Now(),
		Payload:   patch,
		Success:   true,
	})
	o.current = target
	o.transitioning = false
	o.mu.Unlock()

	o.logger.Debug("workflow transition",
		zap.String("from", from.String()),
		zap.String("to", target.String()),
	)
	// Published outside the lock so a handler may read back into the
	// orchestrator without deadlocking.
	o.publishTransition(from, target)
	return true
}

// apply merges the patch and stamps the target status. Panics from
// malformed patches are converted into apply-phase errors so the failed
// transition is recorded instead of crashing the caller.
func (o *Orchestrator) apply(target Step, patch Patch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("apply panicked: %v", r)
		}
	}()

	o.data.merge(patch)
	if info, ok := target.Info(); ok {
		o.data.Status = info.Status
	}
	o.data.UpdatedAt = time.Now()
	return nil
}

// ProgressToNext transitions to the first legal next step
func (o *Orchestrator) ProgressToNext(patch Patch) bool {
	o.mu.Lock()
	next := NextSteps(o.current)
	o.mu.Unlock()

	if len(next) == 0 {
		o.mu.Lock()
		o.errs = append(o.errs, "No next step available")
		o.mu.Unlock()
		return false
	}
	return o.TransitionTo(next[0], patch)
}

// GoBack transitions to the most-recently-defined step whose transition
// set includes the current step. It deliberately skips precondition
// re-checks: rolling back must stay possible even when the data no longer
// satisfies the forward preconditions.
func (o *Orchestrator) GoBack() bool {
	o.mu.Lock()
	current := o.current

	var previous Step
	found := false
	for _, step := range stepOrder {
		if CanTransition(step, current) {
			previous = step
			found = true
		}
	}
	if !found {
		o.errs = append(o.errs, "Cannot go back from current step")
		o.mu.Unlock()
		return false
	}

	from := o.current
	o.transitioning = true
	if err := o.apply(previous, Patch{}); err != nil {
		o.transitioning = false
		o.history = append(o.history, Transition{
			FromStep: from, ToStep: previous, Timestamp: time.Now(), Success: false, Error: err.Error(),
		})
		o.mu.Unlock()
		return false
	}
	o.history = append(o.history, Transition{
		FromStep: from, ToStep: previous, Timestamp: time.Now(), Success: true,
	})
	o.current = previous
	o.transitioning = false
	o.mu.Unlock()

	o.publishTransition(from, previous)
	return true
}

// JumpToStep force-sets the current step, bypassing the transition table
// and every precondition. The orchestrator does no permission check here;
// callers must restrict this to privileged roles.
func (o *Orchestrator) JumpToStep(target Step, patch Patch) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !target.IsValid() {
		o.errs = append(o.errs, fmt.Sprintf("Invalid step: %s", target))
		return false
	}

	if err := o.apply(target, patch); err != nil {
		o.errs = append(o.errs, fmt.Sprintf("Failed to jump to %s: %v", target, err))
		return false
	}
	o.current = target
	return true
}

// Reset reinitializes the workflow
func (o *Orchestrator) Reset() {
	o.Initialize(Patch{})
}

// IsStepCompleted reports whether the step was ever reached successfully
func (o *Orchestrator) IsStepCompleted(step Step) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, tr := range o.history {
		if tr.ToStep == step && tr.Success {
			return true
		}
	}
	return false
}

// Progress describes how far along the lifecycle the workflow is
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Progress returns the position of the current step in the lifecycle
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()

	index := 0
	for i, step := range stepOrder {
		if step == o.current {
			index = i
			break
		}
	}
	current := index + 1
	total := len(stepOrder)
	return Progress{
		Current:    current,
		Total:      total,
		Percentage: current * 100 / total,
	}
}

// Summary is a read-only snapshot of the workflow state
type Summary struct {
	CurrentStep   StepInfo     `json:"current_step"`
	Progress      Progress     `json:"progress"`
	Data          Data         `json:"data"`
	History       []Transition `json:"history"`
	Errors        []string     `json:"errors"`
	Transitioning bool         `json:"is_transitioning"`
}

// Summary returns a snapshot of the workflow for display
func (o *Orchestrator) Summary() Summary {
	progress := o.Progress()

	o.mu.Lock()
	defer o.mu.Unlock()
	info, _ := o.current.Info()
	history := make([]Transition, len(o.history))
	copy(history, o.history)
	errs := make([]string, len(o.errs))
	copy(errs, o.errs)
	return Summary{
		CurrentStep:   info,
		Progress:      progress,
		Data:          o.data,
		History:       history,
		Errors:        errs,
		Transitioning: o.transitioning,
	}
}

func (o *Orchestrator) publishTransition(from, to Step) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish(context.Background(), shared.NewEvent(shared.EventWorkflowTransition, map[string]any{
		"from_step": from.String(),
		"to_step":   to.String(),
	}))
}
