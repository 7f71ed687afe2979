package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/internal/config"
	"github.com/quartzsim/core/internal/controlplane"
	"github.com/quartzsim/core/internal/dashboard"
	"github.com/quartzsim/core/internal/demomodel"
	"github.com/quartzsim/core/internal/httpinspect"
	"github.com/quartzsim/core/internal/livetap"
	"github.com/quartzsim/core/internal/statsbus"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/simulator"
	"github.com/quartzsim/core/vtime"
)

// simTick is how much virtual time one iteration of the sim loop
// advances before yielding back to Drive the control plane and
// inspection mailboxes.
const simTick = vtime.Second

// Runtime owns every long-lived piece of the demo host: the gRPC
// control plane, the HTTP inspection/live-tap server, the optional
// terminal dashboard, and the goroutine driving the simulator itself.
// Start/Stop are handed to fx's lifecycle by RegisterLifecycle.
type Runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	sim    *simulator.Simulator

	cp  *controlplane.Service
	ins *httpinspect.Inspector

	grpcServer    *grpc.Server
	inspectServer *http.Server
	wsServer      *http.Server

	detach []func()

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// ProvideRuntime wires the demo model, control plane, live tap, HTTP
// inspection endpoints, and (if enabled) the terminal dashboard onto
// sim and registry, returning the assembled Runtime.
func ProvideRuntime(
	cfg *config.Config,
	logger *slog.Logger,
	clog collab.Logger,
	sim *simulator.Simulator,
	registry *object.Registry,
	pub message.Publisher,
) (*Runtime, error) {
	sched := sim.Scheduler()

	if err := demomodel.Register(registry, sched, clog, vtime.Second); err != nil {
		return nil, fmt.Errorf("quartzsim: register demo model: %w", err)
	}

	rt := &Runtime{cfg: cfg, logger: logger, sim: sim}

	tap := livetap.New(logger)
	rt.detach = append(rt.detach, tap.WatchLifecycle(sim))

	if wants(cfg.DemoClasses, demomodel.UIDPing, demomodel.UIDPong) {
		ping, _, cleanup, err := demomodel.Wire(registry, clog)
		if err != nil {
			return nil, fmt.Errorf("quartzsim: wire demo model: %w", err)
		}
		rt.detach = append(rt.detach, cleanup)

		bus := statsbus.New(pub, logger)
		detachStats, err := bus.Attach("ping.count", ping.Probe())
		if err != nil {
			return nil, fmt.Errorf("quartzsim: attach statsbus: %w", err)
		}
		rt.detach = append(rt.detach, detachStats, tap.WatchProbe("ping.count", ping.Probe()))

		if cfg.Dashboard {
			dash := dashboard.New()
			rt.detach = append(rt.detach, dash.WatchLifecycle(sim), dash.WatchProbe("ping.count", ping.Probe()))
			go func() {
				if err := dash.Run(context.Background()); err != nil {
					logger.Error("dashboard exited", "error", err)
				}
			}()
		}
	}

	rt.ins = httpinspect.New(registry, sched)
	rt.inspectServer = &http.Server{Addr: cfg.HTTPAddr, Handler: inspectMux(rt.ins)}
	rt.wsServer = &http.Server{Addr: cfg.WSAddr, Handler: tap}

	rt.cp = controlplane.NewService(registry, sched, clog)
	rt.grpcServer = controlplane.NewServer(logger)
	controlplane.RegisterControlPlaneServer(rt.grpcServer, rt.cp)

	return rt, nil
}

func wants(classes []string, uids ...object.TypeID) bool {
	for _, want := range uids {
		found := false
		for _, have := range classes {
			if object.TypeID(have) == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func inspectMux(ins *httpinspect.Inspector) http.Handler {
	r := chi.NewRouter()
	r.Mount("/inspect", ins.Router())
	return r
}

// Start launches the gRPC server, HTTP server, and the sim-driving
// loop in the background and returns immediately, the shape fx expects
// of an OnStart hook.
func (rt *Runtime) Start(context.Context) error {
	lis, err := net.Listen("tcp", rt.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("quartzsim: listen grpc %s: %w", rt.cfg.GRPCAddr, err)
	}
	go func() {
		if err := rt.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			rt.logger.Error("grpc server exited", "error", err)
		}
	}()

	go func() {
		if err := rt.inspectServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.logger.Error("inspect server exited", "error", err)
		}
	}()

	go func() {
		if err := rt.wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.logger.Error("livetap server exited", "error", err)
		}
	}()

	loopCtx, cancel := context.WithCancel(context.Background())
	rt.cancelLoop = cancel
	rt.loopDone = make(chan struct{})
	go rt.runSimLoop(loopCtx)

	return nil
}

// Wait blocks until the sim loop has stopped on its own, which only
// happens when cfg.RunFor bounds the run to a fixed amount of virtual
// time. Used by the run subcommand; serve never calls it, since serve's
// sim loop runs unbounded until Stop cancels it.
func (rt *Runtime) Wait() { <-rt.loopDone }

// Stop drains the sim loop and shuts every server down, releasing
// every demo model object and probe connection ProvideRuntime created.
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.cancelLoop()
	<-rt.loopDone

	rt.grpcServer.GracefulStop()
	if err := rt.inspectServer.Shutdown(ctx); err != nil {
		rt.logger.Warn("inspect server shutdown", "error", err)
	}
	if err := rt.wsServer.Shutdown(ctx); err != nil {
		rt.logger.Warn("livetap server shutdown", "error", err)
	}

	for i := len(rt.detach) - 1; i >= 0; i-- {
		rt.detach[i]()
	}
	return nil
}

// runSimLoop is the single goroutine that owns sim: it advances the
// scheduler simTick at a time and, between advances, drains whatever
// the control plane and the HTTP inspector queued from their own
// goroutines. A bounded cfg.RunFor stops the loop once that much
// virtual time has elapsed; zero means run until cancelled.
func (rt *Runtime) runSimLoop(ctx context.Context) {
	defer close(rt.loopDone)

	var elapsed vtime.Duration
	bounded := rt.cfg.RunFor > 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rt.cp.Drive()
		rt.ins.Drive()

		if err := rt.sim.RunFor(simTick); err != nil {
			rt.logger.Error("sim loop sink error", "error", err)
			return
		}
		elapsed += simTick

		if bounded && elapsed >= vtime.Duration(rt.cfg.RunFor.Nanoseconds()) {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}
}
