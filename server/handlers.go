package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chazu/intcode/amplifier"
	"github.com/chazu/intcode/vm"
	"github.com/chazu/intcode/wire"
)

// maxBodyBytes bounds request bodies; programs are a few kilobytes.
const maxBodyBytes = 8 << 20

// errorKinds names execution failures in error responses.
var errorKinds = []struct {
	err  error
	name string
}{
	{vm.ErrInvalidOpCode, "invalid_opcode"},
	{vm.ErrInvalidParameterMode, "invalid_parameter_mode"},
	{vm.ErrInvalidAddress, "invalid_address"},
	{vm.ErrImmediateModeOutput, "immediate_mode_output"},
	{vm.ErrUnexpectedEOF, "unexpected_eof"},
	{vm.ErrStepLimit, "step_limit"},
	{vm.ErrStalled, "stalled"},
}

func errorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// opError carries the HTTP status an operation failure maps to.
type opError struct {
	status int
	err    error
}

func (e *opError) Error() string { return e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

func failure(status int, err error) error {
	return &opError{status: status, err: err}
}

// statusOf returns the HTTP status for an operation error.
func statusOf(err error) int {
	var oe *opError
	if errors.As(err, &oe) {
		return oe.status
	}
	return http.StatusInternalServerError
}

// --- Operations shared by the REST routes and the RPC procedures ---

func (s *MachineServer) createMachine(req *wire.CreateMachineRequest) (*wire.MachineInfo, error) {
	memory, err := vm.Load(req.Program)
	if err != nil {
		return nil, failure(http.StatusBadRequest, err)
	}

	m := vm.New(memory)
	m.StepLimit = s.stepLimit(req.StepLimit)
	for addr, value := range req.Patch {
		if err := m.Patch(int(addr), value); err != nil {
			return nil, failure(http.StatusBadRequest, err)
		}
	}

	session := s.sessions.Create(m)
	return &wire.MachineInfo{
		ID:    session.ID,
		State: m.State().String(),
		IP:    m.IP(),
	}, nil
}

func (s *MachineServer) inspectMachine(id string) (*wire.MachineInfo, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	result, err := s.worker.Do(func() any {
		m := session.Machine
		info := &wire.MachineInfo{
			ID:     session.ID,
			State:  m.State().String(),
			IP:     m.IP(),
			Memory: m.Memory(),
		}
		if err := m.Err(); err != nil {
			info.Error = err.Error()
		}
		return info
	})
	if err != nil {
		return nil, err
	}
	return result.(*wire.MachineInfo), nil
}

func (s *MachineServer) destroyMachine(id string) error {
	if !s.sessions.Destroy(id) {
		return failure(http.StatusNotFound, fmt.Errorf("unknown machine %q", id))
	}
	return nil
}

type executeResult struct {
	output []vm.Word
	state  vm.State
	err    error
}

func (s *MachineServer) executeMachine(id string, input []vm.Word) (*wire.ExecuteResponse, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	result, err := s.worker.Do(func() any {
		m := session.Machine
		out, err := m.Execute(input)
		return executeResult{output: out, state: m.State(), err: err}
	})
	if err != nil {
		return nil, err
	}

	res := result.(executeResult)
	if res.err != nil {
		log.Debugf("machine %s failed: %v", session.ID, res.err)
		return nil, failure(http.StatusUnprocessableEntity, res.err)
	}

	output := res.output
	if output == nil {
		output = []vm.Word{}
	}
	return &wire.ExecuteResponse{
		Output:   output,
		State:    res.state.String(),
		Finished: res.state == vm.Finished,
	}, nil
}

func (s *MachineServer) amplify(ctx context.Context, req *wire.AmplifyRequest) (*wire.AmplifyResponse, error) {
	if len(req.Phases) == 0 {
		return nil, failure(http.StatusBadRequest, errors.New("no phase settings"))
	}
	if req.Search && s.maxPhases > 0 && len(req.Phases) > s.maxPhases {
		return nil, failure(http.StatusBadRequest,
			fmt.Errorf("search over %d phases exceeds the limit of %d", len(req.Phases), s.maxPhases))
	}

	program, err := vm.Load(req.Program)
	if err != nil {
		return nil, failure(http.StatusBadRequest, err)
	}

	opts := []amplifier.Option{amplifier.WithStepLimit(s.maxSteps)}
	if s.searchWorkers > 0 {
		opts = append(opts, amplifier.WithWorkers(s.searchWorkers))
	}

	var result amplifier.Result
	if req.Search {
		result, err = amplifier.MaxSignal(ctx, program, req.Phases, opts...)
	} else {
		result.Phases = req.Phases
		result.Signal, err = amplifier.Run(program, req.Phases, opts...)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, failure(http.StatusServiceUnavailable, err)
		}
		return nil, failure(http.StatusUnprocessableEntity, err)
	}

	return &wire.AmplifyResponse{
		Signal: result.Signal,
		Phases: result.Phases,
	}, nil
}

// --- REST routes ---

func (s *MachineServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateMachineRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err)
		return
	}
	info, err := s.createMachine(&req)
	if err != nil {
		respondError(w, r, statusOf(err), err)
		return
	}
	respond(w, r, http.StatusCreated, info)
}

func (s *MachineServer) handleInspect(w http.ResponseWriter, r *http.Request) {
	info, err := s.inspectMachine(r.PathValue("id"))
	if err != nil {
		respondError(w, r, statusOf(err), err)
		return
	}
	respond(w, r, http.StatusOK, info)
}

func (s *MachineServer) handleDestroy(w http.ResponseWriter, r *http.Request) {
	if err := s.destroyMachine(r.PathValue("id")); err != nil {
		respondError(w, r, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *MachineServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.lookup(id); err != nil {
		respondError(w, r, statusOf(err), err)
		return
	}

	var req wire.ExecuteRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.executeMachine(id, req.Input)
	if err != nil {
		respondError(w, r, statusOf(err), err)
		return
	}
	respond(w, r, http.StatusOK, res)
}

func (s *MachineServer) handleAmplify(w http.ResponseWriter, r *http.Request) {
	var req wire.AmplifyRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.amplify(r.Context(), &req)
	if err != nil {
		respondError(w, r, statusOf(err), err)
		return
	}
	respond(w, r, http.StatusOK, res)
}

// --- Helpers ---

func (s *MachineServer) lookup(id string) (*Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, failure(http.StatusNotFound, fmt.Errorf("unknown machine %q", id))
	}
	return session, nil
}

// stepLimit applies the server cap to a client-requested limit.
func (s *MachineServer) stepLimit(requested int) int {
	switch {
	case s.maxSteps == 0:
		return requested
	case requested > 0 && requested < s.maxSteps:
		return requested
	default:
		return s.maxSteps
	}
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return wire.ForContentType(r.Header.Get("Content-Type")).Unmarshal(body, v)
}

// responseCodec follows Accept when given, else mirrors the request body.
func responseCodec(r *http.Request) wire.Codec {
	if accept := r.Header.Get("Accept"); accept != "" && accept != "*/*" {
		return wire.ForContentType(accept)
	}
	return wire.ForContentType(r.Header.Get("Content-Type"))
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	codec := responseCodec(r)
	data, err := codec.Marshal(v)
	if err != nil {
		log.Errorf("encode response: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Debugf("write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	respond(w, r, status, &wire.ErrorResponse{
		Error: err.Error(),
		Kind:  errorKind(err),
	})
}
