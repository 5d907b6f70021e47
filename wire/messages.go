// Package wire defines the request and response messages exchanged with
// the machine server, and the JSON and CBOR codecs used to carry them.
package wire

// CreateMachineRequest loads a program into a new machine session.
type CreateMachineRequest struct {
	Program   string          `json:"program"`
	Patch     map[int64]int64 `json:"patch,omitempty"` // address → value
	StepLimit int             `json:"step_limit,omitempty"`
}

// MachineInfo describes a machine session.
type MachineInfo struct {
	ID     string  `json:"id"`
	State  string  `json:"state"`
	IP     int     `json:"ip"`
	Memory []int64 `json:"memory,omitempty"`
	Error  string  `json:"error,omitempty"` // set when State is "failed"
}

// MachineRef names a machine session.
type MachineRef struct {
	ID string `json:"id"`
}

// ExecuteRequest supplies input values to a machine. Over plain HTTP the
// session comes from the URL and ID is ignored.
type ExecuteRequest struct {
	ID    string  `json:"id,omitempty"`
	Input []int64 `json:"input"`
}

// ExecuteResponse carries the output produced by one Execute call.
type ExecuteResponse struct {
	Output   []int64 `json:"output"`
	State    string  `json:"state"`
	Finished bool    `json:"finished"`
}

// AmplifyRequest runs an amplifier chain. With Search set, every ordering
// of Phases is tried and the best one is reported.
type AmplifyRequest struct {
	Program string  `json:"program"`
	Phases  []int64 `json:"phases"`
	Search  bool    `json:"search,omitempty"`
}

// AmplifyResponse reports the resulting signal and the phase ordering
// that produced it.
type AmplifyResponse struct {
	Signal int64   `json:"signal"`
	Phases []int64 `json:"phases"`
}

// Empty is the reply to procedures with nothing to report.
type Empty struct{}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"` // execution error kind, if any
}
