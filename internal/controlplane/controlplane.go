// Package controlplane is a minimal gRPC dynamic-invocation façade over
// the core: an external process can Create a registered class, Query an
// interface on it, Connect a logging sink to (and Disconnect it from) an
// event interface, ScheduleIn a tick, and Release the object. This is a
// collaborator demo, not a wire protocol the core owns; with no
// committed .proto/buf pipeline in this module, the service is hand-
// rolled as plain Go request/response structs carried by a JSON codec
// rather than generated protobuf stubs.
//
// Every method marshals its actual work onto the simulator's single
// goroutine via scheduler.ScheduleNow and blocks for the result, so the
// gRPC server can run on its own goroutine (Go's normal networking
// model) without ever touching object/event/scheduler state from
// outside the thread that owns it.
package controlplane

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	grpclogging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/event"
	"github.com/quartzsim/core/internal/demomodel"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/scheduler"
	"github.com/quartzsim/core/simerr"
	"github.com/quartzsim/core/vtime"
)

// jsonCodec lets the hand-rolled ServiceDesc below marshal plain structs
// instead of protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() { encoding.RegisterCodec(jsonCodec{}) }

type CreateRequest struct{ ClassUID string }
type CreateResponse struct{ Handle string }

type QueryRequest struct{ Handle, InterfaceUID string }
type QueryResponse struct{ Resolved bool }

type ScheduleInRequest struct{ Handle string; Milliseconds int64 }

type ReleaseRequest struct{ Handle string }

// ConnectRequest names an object handle and the event interface UID to
// attach a logging sink to. Only interfaces this package knows the
// concrete Go type of can be wired this way; that is demomodel.PingEvents
// today, the one event interface the demo model exposes.
type ConnectRequest struct{ Handle, InterfaceUID string }
type ConnectResponse struct{ Cookie string }

type DisconnectRequest struct{ Cookie string }

type Ack struct{ OK bool }

// ControlPlaneServer is the hand-rolled equivalent of a generated
// protoc-gen-go-grpc server interface.
type ControlPlaneServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Connect(context.Context, *ConnectRequest) (*ConnectResponse, error)
	Disconnect(context.Context, *DisconnectRequest) (*Ack, error)
	ScheduleIn(context.Context, *ScheduleInRequest) (*Ack, error)
	Release(context.Context, *ReleaseRequest) (*Ack, error)
}

// Service implements ControlPlaneServer against a live registry and
// scheduler. handles maps opaque, client-visible session ids to
// reference-counted objects created through Create.
type Service struct {
	registry *object.Registry
	sched    *scheduler.Scheduler
	logger   collab.Logger

	// cmds is the mailbox gRPC handler goroutines submit work through;
	// only Drive, called from the goroutine that owns sched, ever reads
	// from it, so sched itself is never touched off that one goroutine.
	cmds chan func()

	mu      sync.Mutex
	handles map[string]object.Root
	// cookies maps a client-visible connection handle, returned by
	// Connect, to the detach closure Disconnect runs to tear it down.
	cookies map[string]func()
}

// NewService returns a Service driving registry and sched. Call Drive
// from the goroutine that owns sched once per run-loop iteration so
// submitted requests actually get processed.
func NewService(registry *object.Registry, sched *scheduler.Scheduler, logger collab.Logger) *Service {
	return &Service{
		registry: registry,
		sched:    sched,
		logger:   logger,
		cmds:     make(chan func(), 256),
		handles:  make(map[string]object.Root),
		cookies:  make(map[string]func()),
	}
}

var _ ControlPlaneServer = (*Service)(nil)

// Drive runs every command currently queued by a gRPC handler. It must
// be called only from the goroutine that owns sched (the simulator's
// run loop, in cmd/quartzsim); it never blocks waiting for more work.
func (s *Service) Drive() {
	for {
		select {
		case cmd := <-s.cmds:
			cmd()
		default:
			return
		}
	}
}

// runOnSimLoop hands fn to the goroutine running Drive via ScheduleNow
// and blocks until it has run there.
func (s *Service) runOnSimLoop(fn func() error) error {
	done := make(chan error, 1)
	s.cmds <- func() {
		if _, err := s.sched.ScheduleNow(func() error {
			done <- fn()
			return nil
		}); err != nil {
			done <- err
		}
	}
	return <-done
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	var handle string
	err := s.runOnSimLoop(func() error {
		obj, cerr := s.registry.Create(object.TypeID(req.ClassUID), nil)
		if cerr != nil {
			return cerr
		}
		handle = uuid.NewString()
		s.mu.Lock()
		s.handles[handle] = obj
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &CreateResponse{Handle: handle}, nil
}

func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	err := s.runOnSimLoop(func() error {
		s.mu.Lock()
		obj, ok := s.handles[req.Handle]
		s.mu.Unlock()
		if !ok {
			return simerr.New("controlplane.Query", simerr.CodeNotInitialised, "unknown handle")
		}

		iface, qerr := obj.Query(object.TypeID(req.InterfaceUID))
		if qerr != nil {
			resp.Resolved = false
			return nil
		}
		if root, ok := iface.(object.Root); ok {
			root.Release()
		} else {
			obj.Release()
		}
		resp.Resolved = true
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &resp, nil
}

// Connect attaches a logging sink to req.Handle's req.InterfaceUID event
// interface, returning a cookie Disconnect later tears down. The only
// interface this can wire today is demomodel.PingEvents; anything else
// fails with InvalidArgument.
func (s *Service) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	var cookieHandle string
	err := s.runOnSimLoop(func() error {
		s.mu.Lock()
		obj, ok := s.handles[req.Handle]
		s.mu.Unlock()
		if !ok {
			return simerr.New("controlplane.Connect", simerr.CodeNotInitialised, "unknown handle")
		}

		iface, qerr := obj.Query(object.TypeID(req.InterfaceUID))
		if qerr != nil {
			return qerr
		}
		events, ok := iface.(demomodel.PingEvents)
		if !ok {
			if root, ok := iface.(object.Root); ok {
				root.Release()
			}
			return simerr.New("controlplane.Connect", simerr.CodeInvalidArgument, "interface does not support Connect")
		}

		uid := obj.(interface{ UID() object.TypeID }).UID()
		cookie, cerr := events.Ticks().Connect(func(at vtime.Instant) event.Void {
			collab.Info(s.logger, at, uid, "controlplane observed tick", nil)
			return event.Void{}
		})
		if cerr != nil {
			return cerr
		}

		cookieHandle = uuid.NewString()
		s.mu.Lock()
		s.cookies[cookieHandle] = func() { events.Ticks().Disconnect(cookie) }
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &ConnectResponse{Cookie: cookieHandle}, nil
}

// Disconnect tears down a connection Connect previously made. An unknown
// cookie is a no-op, matching event.Source.Disconnect's own semantics.
func (s *Service) Disconnect(ctx context.Context, req *DisconnectRequest) (*Ack, error) {
	err := s.runOnSimLoop(func() error {
		s.mu.Lock()
		detach, ok := s.cookies[req.Cookie]
		delete(s.cookies, req.Cookie)
		s.mu.Unlock()
		if ok {
			detach()
		}
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &Ack{OK: true}, nil
}

func (s *Service) ScheduleIn(ctx context.Context, req *ScheduleInRequest) (*Ack, error) {
	err := s.runOnSimLoop(func() error {
		at := s.sched.Now()
		_, serr := s.sched.ScheduleIn(vtime.Duration(req.Milliseconds)*vtime.Millisecond, func() error {
			collab.Info(s.logger, s.sched.Now(), object.TypeID(""), "controlplane tick fired", map[string]any{
				"requested_at": at.String(),
			})
			return nil
		})
		return serr
	})
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &Ack{OK: true}, nil
}

func (s *Service) Release(ctx context.Context, req *ReleaseRequest) (*Ack, error) {
	err := s.runOnSimLoop(func() error {
		s.mu.Lock()
		obj, ok := s.handles[req.Handle]
		delete(s.handles, req.Handle)
		s.mu.Unlock()
		if !ok {
			return simerr.New("controlplane.Release", simerr.CodeNotInitialised, "unknown handle")
		}
		obj.Release()
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &Ack{OK: true}, nil
}

// ServiceDesc is the hand-rolled equivalent of a protoc-gen-go-grpc
// *_grpc.pb.go ServiceDesc: one MethodDesc per unary RPC, wiring decode,
// interceptor chaining, and dispatch to a ControlPlaneServer by hand.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "quartzsim.controlplane.v1.ControlPlane",
	HandlerType: (*ControlPlaneServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: createHandler},
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "Connect", Handler: connectHandler},
		{MethodName: "Disconnect", Handler: disconnectHandler},
		{MethodName: "ScheduleIn", Handler: scheduleInHandler},
		{MethodName: "Release", Handler: releaseHandler},
	},
	Metadata: "controlplane/v1/controlplane.proto",
}

func createHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).Create(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartzsim.controlplane.v1.ControlPlane/Create"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).Create(ctx, req.(*CreateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartzsim.controlplane.v1.ControlPlane/Query"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func connectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ConnectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).Connect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartzsim.controlplane.v1.ControlPlane/Connect"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).Connect(ctx, req.(*ConnectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func disconnectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DisconnectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).Disconnect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartzsim.controlplane.v1.ControlPlane/Disconnect"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).Disconnect(ctx, req.(*DisconnectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func scheduleInHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScheduleInRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).ScheduleIn(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartzsim.controlplane.v1.ControlPlane/ScheduleIn"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).ScheduleIn(ctx, req.(*ScheduleInRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func releaseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReleaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).Release(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartzsim.controlplane.v1.ControlPlane/Release"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).Release(ctx, req.(*ReleaseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterControlPlaneServer registers srv on s the way a generated
// RegisterControlPlaneServer func would.
func RegisterControlPlaneServer(s grpc.ServiceRegistrar, srv ControlPlaneServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewServer returns a gRPC server with go-grpc-middleware/v2's logging
// interceptor wired to logger.
func NewServer(logger *slog.Logger) *grpc.Server {
	interceptorLogger := grpclogging.LoggerFunc(func(ctx context.Context, lvl grpclogging.Level, msg string, fields ...any) {
		args := append([]any{"grpc.level", lvl.String()}, fields...)
		logger.Log(ctx, slog.LevelInfo, msg, args...)
	})
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpclogging.UnaryServerInterceptor(interceptorLogger)),
	)
}
