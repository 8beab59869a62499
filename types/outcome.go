package types

// ProbeStatus is the terminal state of one (probe, region) task.
type ProbeStatus string

const (
	ProbeOK      ProbeStatus = "ok"
	ProbePartial ProbeStatus = "partial"
	ProbeFailed  ProbeStatus = "failed"
)

// ProbeOutcome is the per-(probe, region) diagnostic row attached to a
// snapshot. Failures degrade into outcomes; they never abort the run.
type ProbeOutcome struct {
	Probe         string      `json:"probe"`
	Region        string      `json:"region"`
	Status        ProbeStatus `json:"status"`
	ErrorKind     ErrorKind   `json:"error_kind,omitempty"`
	Error         string      `json:"error,omitempty"`
	ItemsEmitted  int         `json:"items_emitted"`
	ItemsRejected int         `json:"items_rejected,omitempty"`
	Truncated     bool        `json:"truncated,omitempty"`
}

// Degraded reports whether the outcome carries anything worth surfacing.
func (o ProbeOutcome) Degraded() bool {
	return o.Status != ProbeOK || o.ItemsRejected > 0 || o.Truncated
}
