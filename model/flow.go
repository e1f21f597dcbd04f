package model

type FlowStatus string

const NOT_STARTED FlowStatus = "NOT_STARTED"
const RUNNING FlowStatus = "RUNNING"
const COMPLETED FlowStatus = "COMPLETED"
const STOPPED FlowStatus = "STOPPED"
const FAILED FlowStatus = "FAILED"

// FlowState is the persisted checkpoint of one flow instance, keyed by kind and subject.
// FlowCompleted is nil until the flow either finishes (true) or is aborted (false).
type FlowState struct {
	FlowKind      string         `json:"flow_kind"`
	SubjectId     string         `json:"subject_id"`
	CurrentStep   int            `json:"current_step"`
	IsRunning     bool           `json:"is_running"`
	FlowCompleted *bool          `json:"flow_completed"`
	Data          map[string]any `json:"data"`
	LastError     string         `json:"last_error,omitempty"`
	// ParkedAt is the step that last paused the flow; it is re-run when a start arrives for
	// a flow that is already running.
	ParkedAt *int `json:"parked_at,omitempty"`
}

func NewFlowState(flowKind string, subjectId string) *FlowState {
	return &FlowState{
		FlowKind:  flowKind,
		SubjectId: subjectId,
		Data:      make(map[string]any),
	}
}

func (s *FlowState) Status() FlowStatus {
	switch {
	case s.IsRunning:
		return RUNNING
	case s.FlowCompleted == nil:
		return NOT_STARTED
	case *s.FlowCompleted:
		return COMPLETED
	case len(s.LastError) > 0:
		return FAILED
	default:
		return STOPPED
	}
}

func (s *FlowState) MarkCompleted(completed bool) {
	s.FlowCompleted = &completed
}

// Merge copies every key of data into the state's data bag.
func (s *FlowState) Merge(data map[string]any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	for k, v := range data {
		s.Data[k] = v
	}
}

// Result is what a flow command hands back to the HTTP layer.
type Result struct {
	Message        string `json:"message,omitempty"`
	CurrentStep    *int   `json:"current_step,omitempty"`
	Error          string `json:"error,omitempty"`
	AlreadyRunning bool   `json:"already_running,omitempty"`
	Completed      bool   `json:"completed,omitempty"`
}

func ErrorResult(err error) *Result {
	return &Result{Error: err.Error()}
}

type FlowCommandRequest struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}
