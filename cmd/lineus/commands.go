package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lineus/lineus"
	"github.com/lineus/lineus/internal/config"
	"github.com/lineus/lineus/internal/conn"
	"github.com/lineus/lineus/internal/logging"
	"github.com/lineus/lineus/internal/ui"
)

// Global flags
var (
	deviceTarget string
	configPath   string
	logLevel     string
	readTimeout  string
	devicePort   int
)

// settings is the loaded config with flag overrides applied
var settings *config.Config

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceTarget, "device", "", "Device host or IP (skips mDNS discovery)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $"+logging.LogLevelEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&readTimeout, "timeout", "", "Response timeout in milliseconds or as a duration (e.g., 500, 2s)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 0, "Device command port (default 1337)")

	rootCmd.AddCommand(helloCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(networksCmd)
}

// setup loads the config file, applies flag overrides and starts logging
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		settings, err = config.LoadFile(configPath)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return err
	}

	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	if devicePort != 0 {
		settings.Port = devicePort
	}
	if readTimeout != "" {
		d, err := conn.ParseTimeout(readTimeout)
		if err != nil {
			return err
		}
		settings.ReadTimeoutMs = int(d / time.Millisecond)
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	// Logging stays silent unless a level is configured
	if err := logging.Initialize(settings.LogLevel); err != nil {
		return err
	}
	logging.Debug("Configuration loaded", zap.Any("config", settings))
	return nil
}

// newDevice creates a client. Commands that never connect by name skip
// the mDNS subscription.
func newDevice(ctx context.Context, discovery bool) (*lineus.Device, error) {
	cfg := settings.ToDeviceConfig()
	cfg.DisableDiscovery = !discovery
	return lineus.New(ctx, cfg)
}

// target returns the device named by --device or the config file
func target() string {
	if deviceTarget != "" {
		return deviceTarget
	}
	return settings.DefaultDevice
}

// connect creates a client and connects to the target device. The caller
// closes the returned device.
func connect(ctx context.Context, p *ui.Printer) (*lineus.Device, error) {
	d, err := newDevice(ctx, target() == "")
	if err != nil {
		return nil, err
	}

	if !d.Connect(ctx, target()) {
		_ = d.Close()
		err := &conn.Error{Type: conn.ErrTypeConnect, Message: connectFailureMessage(), Target: target()}
		p.PrintFailure("Could not connect", err, conn.TroubleshootingHint(err))
		return nil, err
	}
	logging.Info("Connected", zap.String("device", d.Name()))
	return d, nil
}

func connectFailureMessage() string {
	if t := target(); t != "" {
		return fmt.Sprintf("no Line-us answered at %s", t)
	}
	return "no Line-us announced itself over mDNS"
}

// fail prints a failure box for err and returns it
func fail(p *ui.Printer, title string, err error) error {
	p.PrintFailure(title, err, conn.TroubleshootingHint(err))
	return err
}

// withDevice runs fn against a connected device
func withDevice(cmd *cobra.Command, title string, params []ui.Param, fn func(d *lineus.Device, p *ui.Printer) error) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	name := target()
	if name == "" {
		name = "(mDNS)"
	}
	p.PrintHeader(title, cmd.CommandPath(), append([]ui.Param{{Key: "Device", Value: name}}, params...)...)

	d, err := connect(cmd.Context(), p)
	if err != nil {
		return err
	}
	defer d.Close()

	// Ctrl-C ends a command waiting on a silent device
	stop := context.AfterFunc(cmd.Context(), func() { _ = d.Disconnect() })
	defer stop()

	return fn(d, p)
}

var helloCmd = &cobra.Command{
	Use:   "hello [TARGET]",
	Short: "Connect and show the device greeting",
	Example: `  # First device announced over mDNS
  lineus hello

  # Specific device
  lineus hello line-us.local
  lineus hello --device 192.168.1.20:1337`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			deviceTarget = args[0]
		}
		return withDevice(cmd, "Hello", nil, func(d *lineus.Device, p *ui.Printer) error {
			fields, ok := d.Hello()
			if !ok {
				p.PrintWarning("Unrecognised greeting", ui.Param{Key: "Greeting", Value: d.Greeting()})
				return nil
			}
			p.PrintFields(fields)
			p.Newline()
			p.PrintSuccess("Connected", ui.Param{Key: "Address", Value: d.Name()})
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information (M122)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, "Device info", nil, func(d *lineus.Device, p *ui.Printer) error {
			info, err := d.Info()
			if err != nil {
				return fail(p, "Info failed", err)
			}
			p.PrintFields(info)
			return nil
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List drawings stored on the device (M20)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, "Stored drawings", nil, func(d *lineus.Device, p *ui.Printer) error {
			files, err := d.Files()
			if err != nil {
				return fail(p, "Listing failed", err)
			}
			if len(files) == 0 {
				p.PrintWarning("No drawings stored")
				return nil
			}

			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{strconv.Itoa(f.Number), f.Path, strconv.FormatInt(f.Size, 10)})
			}
			p.PrintTable([]string{"Slot", "Path", "Bytes"}, rows)
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move X Y Z",
	Short: "Move the arm (G01)",
	Long: `Move the arm to X, Y in device units with the pen at height Z.
The command returns once the device reports the move finished.`,
	Example: `  # Pen up over the home position
  lineus move 1000 1000 1000

  # Negative coordinates need "--"
  lineus move -- 700 -500 0`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords := make([]int, len(args))
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid coordinate %q: %w", a, err)
			}
			coords[i] = n
		}

		params := []ui.Param{{Key: "Position", Value: strings.Join(args, ", ")}}
		return withDevice(cmd, "Move", params, func(d *lineus.Device, p *ui.Printer) error {
			resp, err := d.Move(coords[0], coords[1], coords[2])
			if err != nil {
				return fail(p, "Move failed", err)
			}
			p.PrintSuccess("Moved", ui.Param{Key: "Response", Value: resp})
			return nil
		})
	},
}

// Upload command flags
var (
	uploadSlot int
	assumeYes  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Save a G-code drawing into a device slot",
	Long: `Save a G-code drawing into one of the device's numbered storage
slots. The drawing replaces whatever the slot held before.`,
	Example: `  # Store drawing.gcode in slot 3
  lineus upload drawing.gcode --slot 3

  # Skip the confirmation prompt
  lineus upload drawing.gcode --slot 3 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().IntVar(&uploadSlot, "slot", 0, "Storage slot number")
	uploadCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func runUpload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read drawing: %w", err)
	}

	params := []ui.Param{
		{Key: "File", Value: args[0]},
		{Key: "Slot", Value: strconv.Itoa(uploadSlot)},
	}
	return withDevice(cmd, "Upload drawing", params, func(d *lineus.Device, p *ui.Printer) error {
		if !assumeYes && !ui.ConfirmUpload(cmd.InOrStdin(), cmd.OutOrStdout(), uploadSlot, d.Name()) {
			return nil
		}

		start := time.Now()
		if err := d.SaveDrawing(string(data), uploadSlot); err != nil {
			return fail(p, "Upload failed", err)
		}
		p.PrintSuccess("Drawing saved",
			ui.Param{Key: "Slot", Value: strconv.Itoa(uploadSlot)},
			ui.Param{Key: "Bytes", Value: strconv.Itoa(len(data))},
			ui.Param{Key: "Duration", Value: time.Since(start).Round(time.Millisecond).String()},
		)
		return nil
	})
}

// Scan command flags
var (
	scanAll       bool
	scanInterface string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan local networks for Line-us devices",
	Long: `Probe every host of the local IPv4 networks on the Line-us command
port and list the devices that answer with a Line-us greeting.

By default the scan stops at the first device found.`,
	Example: `  # Find the first device
  lineus scan

  # Find every device on every network
  lineus scan --all

  # Only scan the networks of one interface
  lineus scan --all --interface en0`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Find every device instead of stopping at the first")
	scanCmd.Flags().StringVar(&scanInterface, "interface", "", "Only scan this network interface")
}

func runScan(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	params := []ui.Param{
		{Key: "Port", Value: strconv.Itoa(settings.Port)},
		{Key: "Workers", Value: strconv.Itoa(settings.Workers)},
	}
	if scanInterface != "" {
		params = append(params, ui.Param{Key: "Interface", Value: scanInterface})
	}
	p.PrintHeader("Network scan", cmd.CommandPath(), params...)

	d, err := newDevice(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer d.Close()

	start := time.Now()
	var devices []lineus.DeviceHandle
	if scanInterface != "" {
		devices, err = d.ScanInterface(cmd.Context(), scanInterface, !scanAll)
	} else {
		devices, err = d.ScanNetwork(cmd.Context(), !scanAll)
	}
	if err != nil {
		if len(devices) > 0 {
			p.PrintDevices(devices)
			p.Newline()
		}
		return fail(p, "Scan failed", err)
	}

	if len(devices) == 0 {
		p.PrintWarning("No Line-us found",
			ui.Param{Key: "Duration", Value: time.Since(start).Round(time.Millisecond).String()})
		return nil
	}

	p.PrintDevices(devices)
	p.Newline()
	p.PrintSuccess(fmt.Sprintf("Found %d device(s)", len(devices)),
		ui.Param{Key: "Duration", Value: time.Since(start).Round(time.Millisecond).String()})
	return nil
}

var listWait time.Duration

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices announced over mDNS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader("mDNS devices", cmd.CommandPath(), ui.Param{Key: "Wait", Value: listWait.String()})

		d, err := newDevice(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer d.Close()

		select {
		case <-time.After(listWait):
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}

		devices := d.DiscoveredDevices()
		if len(devices) == 0 {
			p.PrintWarning("No Line-us announced", ui.Param{Key: "Hint", Value: "try 'lineus scan'"})
			return nil
		}
		p.PrintDevices(devices)
		return nil
	},
}

func init() {
	listCmd.Flags().DurationVar(&listWait, "wait", 3*time.Second, "How long to listen for announcements")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch mDNS announcements until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDevice(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer d.Close()

		feed := make(chan lineus.DeviceHandle, 64)
		push := func(dev lineus.DeviceHandle) {
			select {
			case feed <- dev:
			default:
				logging.Warn("Watch feed full, dropping device", zap.String("device", dev.Key()))
			}
		}
		d.OnDeviceFound(push)
		for _, dev := range d.DiscoveredDevices() {
			push(dev)
		}

		program := tea.NewProgram(ui.NewWatchModel(feed), tea.WithContext(cmd.Context()))
		final, err := program.Run()
		if err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}
		if m, ok := final.(ui.WatchModel); ok {
			logging.Info("Watch finished", zap.Int("devices", len(m.Devices())))
		}
		return nil
	},
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the local networks a scan covers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader("Networks", cmd.CommandPath())

		d, err := newDevice(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer d.Close()

		networks, err := d.Networks()
		if err != nil {
			return fail(p, "Listing networks failed", err)
		}
		if len(networks) == 0 {
			p.PrintWarning("No usable IPv4 networks")
			return nil
		}

		rows := make([][]string, 0, len(networks))
		for _, n := range networks {
			rows = append(rows, []string{n.Name, n.Address.String(), n.Network.String(), n.Broadcast.String()})
		}
		p.PrintTable([]string{"Interface", "Address", "Network", "Broadcast"}, rows)
		return nil
	},
}
