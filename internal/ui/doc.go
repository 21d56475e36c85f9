// Package ui renders terminal output for the lineus CLI.
//
// Most commands print once and exit. They use the Printer for a header
// box, tables and a success or failure box styled with Lipgloss. Multi
// step commands such as diagnostics run through a Runner, which streams
// step lines while the operation reports progress:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Diagnostics",
//	    Command: "lineus diag",
//	    Hints:   conn.TroubleshootingHint,
//	})
//
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, "Finding networks", ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, "Finding networks", ui.StepComplete, "")
//	    return []ui.Param{{Key: "Devices", Value: "1"}}, nil
//	})
//
// WatchModel is the one interactive view. It is a Bubble Tea model that
// lists devices as mDNS announces them until the user quits.
//
// Logging is controlled by LINEUS_LOG_LEVEL. When it is unset zap is
// silent so the curated output is not interleaved with log lines.
package ui
