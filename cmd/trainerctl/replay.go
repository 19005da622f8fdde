package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"backend-mtbtrainer/internal/collection"
	"backend-mtbtrainer/internal/export"
	"backend-mtbtrainer/internal/filter"
	"backend-mtbtrainer/internal/merge"
	"backend-mtbtrainer/internal/recording"
	"backend-mtbtrainer/internal/ride"
	"backend-mtbtrainer/internal/source"

	"github.com/spf13/cobra"
)

type replayResult struct {
	SessionID string            `json:"sessionId"`
	Events    int               `json:"events"`
	Stats     ride.Stats        `json:"stats"`
	Summary   recording.Summary `json:"summary"`
	Export    string            `json:"export,omitempty"`
}

func newReplayCmd() *cobra.Command {
	var (
		pace      bool
		exportDir string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Feed an exported session through a fresh collection session and print its stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			replay, err := source.OpenReplay(args[0], pace)
			if err != nil {
				return err
			}

			rideCfg := ride.Config{Thresholds: cfg.JumpThresholds(), Window: cfg.SmoothingWindow}
			if rideCfg.Window < 1 {
				rideCfg.Window = filter.DefaultWindow
			}
			opts := collection.DefaultOptions()
			opts.Session = rideCfg
			ctrl := collection.NewController(func() []merge.Source { return []merge.Source{replay} }, opts)

			ctx := cmd.Context()
			ctrl.Start(ctx)
			select {
			case <-replay.Finished():
			case <-ctx.Done():
			}
			ctrl.Stop()

			var req collection.SaveRequest
			select {
			case req = <-ctrl.SaveRequests():
			default:
				return errors.New("replay produced no samples")
			}

			res := replayResult{
				SessionID: req.SessionID,
				Events:    len(req.Events),
				Stats:     req.Stats,
				Summary:   recording.Summarize(rideCfg, req.Events),
			}
			if exportDir != "" {
				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				w, err := export.NewWriter(exportDir, f)
				if err != nil {
					return err
				}
				name, err := w.Write(req.SuggestedFileName, req.Events)
				if err != nil {
					return err
				}
				res.Export = filepath.Join(exportDir, name)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("print result: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pace, "pace", false, "replay at the recorded speed")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "write the replayed session to this directory")
	cmd.Flags().StringVar(&format, "format", "json", "export format: json or parquet")
	return cmd
}
