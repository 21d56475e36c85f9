package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lineus/lineus/internal/conn"
	"github.com/lineus/lineus/internal/diagnostics"
	"github.com/lineus/lineus/internal/ui"
)

var diagPause time.Duration

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Diagnose why a Line-us cannot be found",
	Long: `Run connectivity diagnostics:

  1. List the local networks
  2. Scan every network for devices
  3. List devices announced over mDNS
  4. Try to connect to every device by DNS name, mDNS name and IP

Scanning every network may take a few minutes.`,
	Args: cobra.NoArgs,
	RunE: runDiag,
}

func init() {
	diagCmd.Flags().DurationVar(&diagPause, "pause", diagnostics.DefaultPause, "Pause between connection attempts")
	rootCmd.AddCommand(diagCmd)
}

func runDiag(cmd *cobra.Command, args []string) error {
	d, err := newDevice(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer d.Close()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Diagnostics",
		Command: cmd.CommandPath(),
		Params: []ui.Param{
			{Key: "Port", Value: strconv.Itoa(settings.Port)},
			{Key: "Pause", Value: diagPause.String()},
		},
		Output: cmd.OutOrStdout(),
		Hints:  conn.TroubleshootingHint,
	})

	var report *diagnostics.Report
	err = runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		diag := diagnostics.NewRunner(d)
		diag.Port = settings.Port
		diag.ConnectTimeout = time.Duration(settings.ConnectTimeoutMs) * time.Millisecond
		diag.Pause = diagPause

		// Each status message starts a step and completes the one before
		step := 0
		var current string
		diag.OnStatus = func(message string) {
			if step > 0 {
				onStep(step, current, ui.StepComplete, "")
			}
			step++
			current = message
			onStep(step, current, ui.StepRunning, "")
		}

		var err error
		report, err = diag.Run(ctx)
		if step > 0 {
			status := ui.StepComplete
			if err != nil {
				status = ui.StepFailed
			}
			onStep(step, current, status, "")
		}
		if err != nil {
			return nil, err
		}

		return []ui.Param{
			{Key: "Networks", Value: strconv.Itoa(len(report.Networks))},
			{Key: "Devices", Value: strconv.Itoa(report.DeviceCount())},
		}, nil
	})
	if err != nil {
		return err
	}

	printReport(ui.NewPrinter(cmd.OutOrStdout()), report)
	return nil
}

// printReport lists every connection attempt
func printReport(p *ui.Printer, report *diagnostics.Report) {
	if len(report.Checks) == 0 {
		p.Newline()
		p.PrintWarning("No Line-us found",
			ui.Param{Key: "Hint", Value: "check the device is on the same network as this computer"})
		return
	}

	rows := make([][]string, 0)
	for _, check := range report.Checks {
		for _, c := range check.Checks {
			result := ui.FailureMarker
			if c.Success {
				result = ui.SuccessMarker
			}
			rows = append(rows, []string{check.Device.Name, check.Source, c.Method, c.Target, result})
		}
	}

	p.Newline()
	p.PrintTable([]string{"Device", "Found by", "Method", "Target", "OK"}, rows)

	var unreachable []string
	for _, check := range report.Checks {
		if !check.Reachable() {
			unreachable = append(unreachable, check.Device.Name)
		}
	}
	if len(unreachable) > 0 {
		p.Newline()
		p.PrintWarning(fmt.Sprintf("%d device(s) unreachable", len(unreachable)),
			ui.Param{Key: "Devices", Value: strings.Join(unreachable, ", ")})
	}
}
