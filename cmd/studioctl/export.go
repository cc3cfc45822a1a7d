package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"eagle-studio/internal/app"
	"eagle-studio/internal/export"
	"eagle-studio/internal/workflow"
)

var errNoSink = errors.New("no export target: pass --out or set EXPORT_DIR / EXPORT_S3_BUCKET")

var exportOutDir string

var exportCmd = &cobra.Command{
	Use:   "export <session.json>",
	Short: "Bundle a saved session snapshot into a zip archive",
	Long:  "Reads a session snapshot as returned by GET /api/sessions/:id and writes every generated artifact as a PNG zip to --out, or to the configured export sink.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", "", "Output directory (overrides the configured sink)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := readState(args[0])
	if err != nil {
		return err
	}

	var sink export.Sink
	if exportOutDir != "" {
		sink = export.DirSink{Dir: exportOutDir}
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if sink, err = app.OpenSink(ctx, cfg, nil); err != nil {
			return err
		}
	}
	if sink == nil {
		return errNoSink
	}

	location, err := exportState(ctx, sink, state, time.Now().Unix())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), location)
	return nil
}

func readState(path string) (workflow.State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return workflow.State{}, err
	}
	var state workflow.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return workflow.State{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return state, nil
}

func exportState(ctx context.Context, sink export.Sink, state workflow.State, stamp int64) (string, error) {
	data, err := export.Bundle(state.Data)
	if err != nil {
		return "", err
	}
	return sink.Put(ctx, export.BundleName(state.Mode, stamp), data, "application/zip")
}
