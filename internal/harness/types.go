package harness

// TraceEvent records one flow step and the transaction it produced.
// Optional fields are pointers so the golden trace only shows what the
// step actually yielded.
type TraceEvent struct {
	Seq           int64   `json:"seq"`
	Step          int     `json:"step"`
	Op            string  `json:"op"`
	Kind          string  `json:"kind"`
	AppID         *uint64 `json:"app_id,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	Code          *int32  `json:"code,omitempty"`
	OK            *bool   `json:"ok,omitempty"`
	Version       *uint32 `json:"version,omitempty"`
	Apps          []App   `json:"apps,omitempty"`
	Abort         string  `json:"abort,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalApps is the hub state after the flow, in load order.
	FinalApps []App `json:"final_apps"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		FinalApps: []App{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a step event to the trace.
func (r *Result) AddEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
