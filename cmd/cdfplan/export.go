package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cdfplan/internal/delivery"
	appLog "cdfplan/internal/log"
	"cdfplan/internal/model"
)

func newExportCmd() *cobra.Command {
	var (
		eventsPath string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an iCalendar file from a JSON list of events",
		Example: `  cdfplan export --events shifts.json --out ./exports
  # shifts.json: [{"title":"Setup","day":"2026-04-03","startTime":"08:00","endTime":"10:00"}]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(eventsPath)
			if err != nil {
				return err
			}
			var events []model.EventRecord
			if err := json.Unmarshal(data, &events); err != nil {
				return fmt.Errorf("export: %s: %w", eventsPath, err)
			}

			doc, ok := newGenerator(conf).Generate(events)
			if !ok {
				appLog.Info("no events to export", "events_file", eventsPath)
				return nil
			}

			name := delivery.Filename(events, conf.Calendar.MultiEventFilename)
			path, err := delivery.WriteFile(outDir, name, doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventsPath, "events", "", "JSON file with the events to export")
	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}
