package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"github.com/webitel/cloudevents-bin/config"
)

const (
	ServiceName      = "cloudevents-bin"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.1"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Namespace-scoped CloudEvents webhook bin with a live feed",
		Commands: []*cli.Command{
			serverCmd(),
			versionCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	overrides := config.NewFlagSet()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config_file",
			Usage:   "Path to the configuration file",
			EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
		},
	}
	// [FLAG_BRIDGE] Every config override is also a CLI flag.
	overrides.VisitAll(func(f *pflag.Flag) {
		flags = append(flags, &cli.StringFlag{Name: f.Name, Usage: f.Usage, Value: f.DefValue})
	})

	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP server and the delivery worker",
		Flags:   flags,
		Action: func(c *cli.Context) error {
			var setErr error
			overrides.VisitAll(func(f *pflag.Flag) {
				if c.IsSet(f.Name) && setErr == nil {
					setErr = overrides.Set(f.Name, c.String(f.Name))
				}
			})
			if setErr != nil {
				return setErr
			}

			cfg, err := config.LoadConfig(c.String("config_file"), overrides)
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			startCtx, cancel := context.WithTimeout(c.Context, app.StartTimeout())
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			slog.Info("SHUTTING_DOWN")
			stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
			defer cancelStop()
			return app.Stop(stopCtx)
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintf(c.App.Writer, "%s %s (commit %s, branch %s, date %s, built %s)\n",
				ServiceName, version, commit, branch, commitDate, buildTimestamp)
			return err
		},
	}
}
