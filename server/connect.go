package server

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/chazu/intcode/wire"
)

// Connect procedure paths. They carry the same wire messages as the REST
// routes, encoded as application/json or application/cbor.
const (
	MachineServiceName  = "intcode.v1.MachineService"
	PipelineServiceName = "intcode.v1.PipelineService"

	CreateMachineProcedure  = "/" + MachineServiceName + "/CreateMachine"
	InspectMachineProcedure = "/" + MachineServiceName + "/InspectMachine"
	ExecuteProcedure        = "/" + MachineServiceName + "/Execute"
	DestroyMachineProcedure = "/" + MachineServiceName + "/DestroyMachine"
	AmplifyProcedure        = "/" + PipelineServiceName + "/Amplify"
)

// mountProcedures registers the Connect handlers on the server mux.
func (s *MachineServer) mountProcedures() {
	opts := []connect.HandlerOption{
		connect.WithCodec(wire.JSON),
		connect.WithCodec(wire.CBOR),
		connect.WithReadMaxBytes(maxBodyBytes),
	}

	s.mux.Handle(CreateMachineProcedure, connect.NewUnaryHandler(CreateMachineProcedure,
		func(_ context.Context, req *connect.Request[wire.CreateMachineRequest]) (*connect.Response[wire.MachineInfo], error) {
			return reply(s.createMachine(req.Msg))
		}, opts...))

	s.mux.Handle(InspectMachineProcedure, connect.NewUnaryHandler(InspectMachineProcedure,
		func(_ context.Context, req *connect.Request[wire.MachineRef]) (*connect.Response[wire.MachineInfo], error) {
			return reply(s.inspectMachine(req.Msg.ID))
		}, opts...))

	s.mux.Handle(ExecuteProcedure, connect.NewUnaryHandler(ExecuteProcedure,
		func(_ context.Context, req *connect.Request[wire.ExecuteRequest]) (*connect.Response[wire.ExecuteResponse], error) {
			return reply(s.executeMachine(req.Msg.ID, req.Msg.Input))
		}, opts...))

	s.mux.Handle(DestroyMachineProcedure, connect.NewUnaryHandler(DestroyMachineProcedure,
		func(_ context.Context, req *connect.Request[wire.MachineRef]) (*connect.Response[wire.Empty], error) {
			return reply(&wire.Empty{}, s.destroyMachine(req.Msg.ID))
		}, opts...))

	s.mux.Handle(AmplifyProcedure, connect.NewUnaryHandler(AmplifyProcedure,
		func(ctx context.Context, req *connect.Request[wire.AmplifyRequest]) (*connect.Response[wire.AmplifyResponse], error) {
			return reply(s.amplify(ctx, req.Msg))
		}, opts...))
}

func reply[T any](msg *T, err error) (*connect.Response[T], error) {
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(msg), nil
}

// rpcError converts an operation error to a Connect error whose code
// matches the status the REST route would have used.
func rpcError(err error) error {
	code := connect.CodeInternal
	switch statusOf(err) {
	case http.StatusBadRequest:
		code = connect.CodeInvalidArgument
	case http.StatusNotFound:
		code = connect.CodeNotFound
	case http.StatusUnprocessableEntity:
		code = connect.CodeFailedPrecondition
	case http.StatusServiceUnavailable:
		code = connect.CodeUnavailable
		if errors.Is(err, context.Canceled) {
			code = connect.CodeCanceled
		}
	}
	cerr := connect.NewError(code, err)
	if kind := errorKind(err); kind != "" {
		cerr.Meta().Set("Intcode-Error-Kind", kind)
	}
	return cerr
}
