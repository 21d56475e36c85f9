package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/lineus/lineus"
	"github.com/lineus/lineus/internal/ui"
)

var sendRaw bool

var sendCmd = &cobra.Command{
	Use:   "send COMMAND [PARAMETERS...]",
	Short: "Send one G-code command and print the response",
	Long: `Send one G-code command and print the device's response.

The command may be given as separate arguments or as one quoted string.
With --raw the text is sent exactly as written.`,
	Example: `  # Home the arm
  lineus send G28

  # Quoted form
  lineus send "G01 X1000 Y0 Z1000"

  # Exact line, no reformatting
  lineus send --raw "M122"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		line := strings.Join(args, " ")
		return withDevice(cmd, "Send", []ui.Param{{Key: "Command", Value: line}}, func(d *lineus.Device, p *ui.Printer) error {
			resp, err := send(d, line, sendRaw)
			if err != nil {
				return fail(p, "Command failed", err)
			}
			p.PrintSuccess("Response", ui.Param{Key: "Reply", Value: resp})
			return nil
		})
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Send G-code interactively",
	Long: `Read commands from standard input and send each to the device.

Built-in commands:
  timeout VALUE   set the response timeout (milliseconds or duration)
  hello           show the greeting
  quit, exit      leave the shell`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, "Shell", nil, func(d *lineus.Device, p *ui.Printer) error {
			return runShell(d, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

func init() {
	sendCmd.Flags().BoolVar(&sendRaw, "raw", false, "Send the text verbatim")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(shellCmd)
}

// send splits line into a command and its parameters unless raw is set
func send(d *lineus.Device, line string, raw bool) (string, error) {
	if raw {
		return d.SendRaw(line)
	}

	tokens, err := shellquote.Split(line)
	if err != nil {
		return "", fmt.Errorf("invalid command %q: %w", line, err)
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("empty command")
	}
	return d.SendCommand(tokens[0], strings.Join(tokens[1:], " "))
}

// runShell sends one line at a time until EOF or quit. Errors are printed
// and the shell continues while the session is still open; a socket
// error ends it.
func runShell(d *lineus.Device, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "lineus> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens, err := shellquote.Split(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		switch strings.ToLower(tokens[0]) {
		case "quit", "exit":
			return nil
		case "hello":
			fmt.Fprintln(out, d.Greeting())
			continue
		case "timeout":
			if len(tokens) != 2 || !d.SetTimeoutString(tokens[1]) {
				fmt.Fprintln(out, "usage: timeout VALUE (e.g., 500 or 2s)")
				continue
			}
			fmt.Fprintf(out, "timeout %s\n", d.Timeout())
			continue
		}

		resp, err := d.SendCommand(tokens[0], strings.Join(tokens[1:], " "))
		if err != nil {
			if !d.Connected() {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, resp)
	}
}
