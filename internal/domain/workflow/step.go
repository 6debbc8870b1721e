package workflow

// Step is one named stage in the procurement lifecycle, from the
// engineer's requisition all the way to accounting payment.
type Step string

const (
	StepRequisition  Step = "requisition"
	StepApproval     Step = "approval"
	StepProcurement  Step = "procurement"
	StepConfirmation Step = "confirmation"
	StepShipping     Step = "shipping"
	StepReceiving    Step = "receiving"
	StepStorage      Step = "storage"
	StepAcceptance   Step = "acceptance"
	StepInventory    Step = "inventory"
	StepAccounting   Step = "accounting"
)

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}

// IsValid checks if the step is a known workflow step
func (s Step) IsValid() bool {
	_, ok := stepDefinitions[s]
	return ok
}

// IsTerminal reports whether the step has no outgoing transitions
func (s Step) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// StepInfo carries per-step display metadata and the entity status the
// business object is stamped with once the step is reached.
type StepInfo struct {
	ID          Step
	Name        string
	Description string
	Roles       []string
	Status      string
}

// Info returns the metadata for the step, ok=false for unknown steps
func (s Step) Info() (StepInfo, bool) {
	info, ok := stepDefinitions[s]
	return info, ok
}

// Steps returns all workflow steps in lifecycle order
func Steps() []Step {
	ordered := make([]Step, len(stepOrder))
	copy(ordered, stepOrder)
	return ordered
}

// NextSteps returns the legal destination steps from the given step
func NextSteps(from Step) []Step {
	next := make([]Step, len(transitions[from]))
	copy(next, transitions[from])
	return next
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to Step) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// stepOrder fixes the canonical lifecycle order; predecessor resolution
// in GoBack depends on this ordering being stable.
var stepOrder = []Step{
	StepRequisition,
	StepApproval,
	StepProcurement,
	StepConfirmation,
	StepShipping,
	StepReceiving,
	StepStorage,
	StepAcceptance,
	StepInventory,
	StepAccounting,
}

// transitions is the directed transition table. Approval can reject back
// to requisition; accounting is terminal.
var transitions = map[Step][]Step{
	StepRequisition:  {StepApproval},
	StepApproval:     {StepProcurement, StepRequisition},
	StepProcurement:  {StepConfirmation},
	StepConfirmation: {StepShipping},
	StepShipping:     {StepReceiving},
	StepReceiving:    {StepStorage},
	StepStorage:      {StepAcceptance},
	StepAcceptance:   {StepInventory},
	StepInventory:    {StepAccounting},
	StepAccounting:   {},
}

var stepDefinitions = map[Step]StepInfo{
	StepRequisition: {
		ID:          StepRequisition,
		Name:        "工程師請購",
		Description: "Engineers create purchase requisitions",
		Roles:       []string{"Everyone"},
		Status:      "draft",
	},
	StepApproval: {
		ID:          StepApproval,
		Name:        "採購審核",
		Description: "Procurement team reviews and approves requisitions",
		Roles:       []string{"Procurement", "ProcurementMgr"},
		Status:      "in_review",
	},
	StepProcurement: {
		ID:          StepProcurement,
		Name:        "採購單生成",
		Description: "Create purchase orders from approved requisitions",
		Roles:       []string{"Procurement", "ProcurementMgr"},
		Status:      "approved",
	},
	StepConfirmation: {
		ID:          StepConfirmation,
		Name:        "供應商確認",
		Description: "Supplier confirms purchase orders",
		Roles:       []string{"Procurement", "ProcurementMgr"},
		Status:      "confirmed",
	},
	StepShipping: {
		ID:          StepShipping,
		Name:        "交期維護",
		Description: "Track shipping and delivery milestones",
		Roles:       []string{"Procurement", "ProcurementMgr"},
		Status:      "shipped",
	},
	StepReceiving: {
		ID:          StepReceiving,
		Name:        "收貨確認",
		Description: "Confirm receipt of delivered items",
		Roles:       []string{"Everyone"},
		Status:      "received",
	},
	StepStorage: {
		ID:          StepStorage,
		Name:        "儲位分配",
		Description: "Assign storage locations for received items",
		Roles:       []string{"Everyone"},
		Status:      "stored",
	},
	StepAcceptance: {
		ID:          StepAcceptance,
		Name:        "請購人驗收",
		Description: "Original requestor accepts received items",
		Roles:       []string{"Everyone"},
		Status:      "accepted",
	},
	StepInventory: {
		ID:          StepInventory,
		Name:        "庫存查詢領用",
		Description: "Query inventory and issue items for use",
		Roles:       []string{"Everyone"},
		Status:      "issued",
	},
	StepAccounting: {
		ID:          StepAccounting,
		Name:        "會計請款付款",
		Description: "Generate billing and process payments",
		Roles:       []string{"Accountant", "ProcurementMgr", "Admin"},
		Status:      "paid",
	},
}
