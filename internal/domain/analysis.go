package domain

// ============================================================
// Analysis inputs & analyzer state
// ============================================================

// DefaultProjectType is the COI preset used when none was chosen.
const DefaultProjectType = "commercial_construction"

// DefaultLeaseType is sent for leases when no lease type was chosen.
const DefaultLeaseType = "commercial"

// AnalysisOptions are the user-chosen supplements that travel with an
// analysis request. Nil pointers are omitted from request bodies, except
// State which is always sent.
type AnalysisOptions struct {
	ProjectType   string  `json:"project_type"`
	State         *string `json:"state"`
	LeaseType     string  `json:"lease_type"`
	Salary        *int    `json:"salary,omitempty"`
	ProjectValue  *int    `json:"project_value,omitempty"`
	BaseRate      *int    `json:"base_rate,omitempty"`
	PurchasePrice *int    `json:"purchase_price,omitempty"`
	AnnualFee     *int    `json:"annual_fee,omitempty"`
	PolicyType    *string `json:"policy_type,omitempty"`
}

// WithDefaults fills the presets the backend expects.
func (o AnalysisOptions) WithDefaults() AnalysisOptions {
	if o.ProjectType == "" {
		o.ProjectType = DefaultProjectType
	}
	if o.LeaseType == "" {
		o.LeaseType = DefaultLeaseType
	}
	return o
}

// AnalyzerState is a point-in-time copy of one analyzer instance.
type AnalyzerState[T any] struct {
	Report    *T   `json:"report"`
	ActiveTab Tab  `json:"active_tab"`
	Loading   bool `json:"loading"`
}

// DisclaimerState is the gate's phase.
type DisclaimerState string

const (
	DisclaimerIdle      DisclaimerState = "idle"
	DisclaimerPrompting DisclaimerState = "prompting"
	DisclaimerAccepted  DisclaimerState = "accepted"
)

// DisclaimerSession is a snapshot of the disclaimer gate.
type DisclaimerSession struct {
	State       DisclaimerState `json:"state"`
	Accepted    bool            `json:"accepted"`
	PendingType *DocumentType   `json:"pending_type"`
	InputText   string          `json:"input_text"`
	CanConfirm  bool            `json:"can_confirm"`
}
