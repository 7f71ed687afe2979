package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/quartzsim/core/internal/config"
)

const (
	ServiceName = "quartzsim"
)

// Run parses os.Args and dispatches to the run or serve subcommand.
func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "discrete-event network simulation core, demo host",
		Commands: []*cli.Command{
			runCmd(),
			serveCmd(),
		},
	}

	return app.Run(os.Args)
}

func configFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "config_file",
		Usage: "path to the configuration file",
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	flags := pflag.NewFlagSet(ServiceName, pflag.ContinueOnError)
	flags.String("config_file", c.String("config_file"), "")
	return config.Load(flags)
}

// runCmd runs a bounded simulation (config's run_for must be positive)
// to completion and exits, without waiting on an interrupt signal. It
// is the scripting/CI counterpart to serve's long-running host.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a bounded demo simulation to completion, then exit",
		Flags: []cli.Flag{configFileFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.RunFor <= 0 {
				return fmt.Errorf("quartzsim run: config run_for must be a positive duration")
			}

			var rt *Runtime
			app := fx.New(append(appOptions(cfg), fx.Populate(&rt))...)
			if err := app.Start(c.Context); err != nil {
				return err
			}
			fmt.Println(color.GreenString("quartzsim running"), "for="+cfg.RunFor.String())

			rt.Wait()

			if err := app.Stop(context.Background()); err != nil {
				fmt.Println(color.RedString("shutdown error"), err)
				return err
			}
			fmt.Println(color.GreenString("quartzsim finished"))
			return nil
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "run a demo simulation behind the control plane, live tap, and HTTP inspection endpoints",
		Flags:   []cli.Flag{configFileFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			app := NewApp(cfg)
			if err := app.Start(c.Context); err != nil {
				return err
			}
			fmt.Println(color.GreenString("quartzsim listening"), "grpc="+cfg.GRPCAddr, "http="+cfg.HTTPAddr, "ws="+cfg.WSAddr)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("shutting down")
			if err := app.Stop(context.Background()); err != nil {
				fmt.Println(color.RedString("shutdown error"), err)
				return err
			}
			fmt.Println(color.GreenString("quartzsim stopped"))
			return nil
		},
	}
}
