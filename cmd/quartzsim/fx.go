package main

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/internal/config"
	"github.com/quartzsim/core/internal/obslog"
	"github.com/quartzsim/core/internal/statsbus"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/simulator"
)

// appOptions builds the demo host's dependency graph: config in, a
// simulator/registry pair, the collaborator adapters, the demo host's
// control/live/inspection surfaces, and the Runtime that drives them
// all from fx's Start/Stop lifecycle. Shared by NewApp (the serve
// subcommand, which waits for SIGINT/SIGTERM itself) and the run
// subcommand, which additionally needs the assembled *Runtime itself to
// wait on a bounded simulation's completion.
func appOptions(cfg *config.Config) []fx.Option {
	return []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideCollabLogger,
			ProvideWatermillLogger,
			ProvideSimulator,
			ProvideRegistry,
			ProvidePublisher,
			ProvideRuntime,
		),
		fx.Invoke(RegisterLifecycle),
	}
}

// NewApp returns the fx app for the serve subcommand.
func NewApp(cfg *config.Config) *fx.App {
	return fx.New(appOptions(cfg)...)
}

func ProvideLogger() *slog.Logger {
	return obslog.New(slog.LevelInfo)
}

func ProvideCollabLogger(logger *slog.Logger) collab.Logger {
	return obslog.NewAdapter(logger)
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func ProvideSimulator() *simulator.Simulator { return simulator.New() }

func ProvideRegistry() *object.Registry { return object.NewRegistry() }

func ProvidePublisher(wlog watermill.LoggerAdapter) message.Publisher {
	return statsbus.NewInMemoryPublisher(wlog)
}

// RegisterLifecycle hands rt's Start/Stop to fx.
func RegisterLifecycle(lc fx.Lifecycle, rt *Runtime) {
	lc.Append(fx.Hook{
		OnStart: rt.Start,
		OnStop:  rt.Stop,
	})
}
