package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cdfplan/internal/capture"
	"cdfplan/internal/dataset"
	"cdfplan/internal/host"
	appLog "cdfplan/internal/log"
	"cdfplan/internal/store"
	"cdfplan/internal/web"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the App and its ports over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			appLog.Info("cdfplan starting", "version", version)

			conf, err := loadConfig()
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				conf.Listen = listen
			}

			appLog.Info("effective config",
				"listen", conf.Listen,
				"base_path", conf.BasePath,
				"store_driver", conf.Store.Driver,
				"planning_file", conf.PlanningFile,
				"benevoles_file", conf.BenevolesFile,
				"reload", conf.ReloadCron,
				"print_enabled", conf.Print.Enabled,
				"fallback_date", conf.Calendar.FallbackDate,
			)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sel, err := store.Open(ctx, conf.Store)
			if err != nil {
				appLog.Error("failed to open selection store", err, "driver", conf.Store.Driver)
				return err
			}
			defer func() {
				if err := sel.Close(); err != nil {
					appLog.Error("failed to close selection store", err)
				}
			}()

			ds := dataset.New(conf.PlanningFile, conf.BenevolesFile)
			if err := ds.Load(); err != nil {
				appLog.Error("failed to load datasets", err)
				return err
			}
			sched, err := ds.Schedule(conf.ReloadCron)
			if err != nil {
				return err
			}
			if sched != nil {
				defer sched.Stop()
			}

			opts := host.Options{
				Store:           sel,
				Datasets:        ds,
				Generator:       newGenerator(conf),
				GenericFilename: conf.Calendar.MultiEventFilename,
			}
			if conf.Print.Enabled {
				printer := capture.NewPrinter(conf.PrintURL(), conf.Print.ReadySelector, conf.PrintTimeout())
				if conf.BasicAuthEnabled() {
					printer.WithBasicAuth(conf.BasicAuth.Username, conf.BasicAuth.Password)
				}
				opts.Printer = printer
			}
			h := host.New(opts)
			appLog.Info("channels supported", "channels", h.Supported())

			if err := web.NewServer(conf, h).Run(ctx); err != nil {
				appLog.Error("HTTP server failed", err)
				return err
			}

			appLog.Info("cdfplan exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
