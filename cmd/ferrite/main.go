// Command ferrite runs the terminal emulator inside the current terminal.
package main

import (
	"fmt"
	"io"
	"os"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ferriteterm/ferrite/cli"
)

var (
	flagCols    int
	flagRows    int
	flagShell   string
	flagLogFile string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ferrite",
	Short: "A VT100/xterm-compatible terminal emulator",
	Long: `ferrite runs a shell on a pseudo-terminal and emulates a VT100/xterm
terminal on top of the one you are already in.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("stdin is not a terminal")
		}

		logger, closeLog, err := newLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		shell := flagShell
		if len(args) > 0 {
			shell = args[0]
		}

		t := cli.New(cli.Options{
			Cols:   flagCols,
			Rows:   flagRows,
			Shell:  shell,
			Logger: logger,
		})
		return t.Run()
	},
}

// newLogger builds the session logger. The UI owns the terminal, so logs go
// to a file when requested and are discarded otherwise.
func newLogger() (*clog.Logger, func(), error) {
	if flagLogFile == "" {
		return clog.New(io.Discard), func() {}, nil
	}
	f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := clog.NewWithOptions(f, clog.Options{
		ReportTimestamp: true,
	})
	if flagVerbose {
		logger.SetLevel(clog.DebugLevel)
	}
	return logger, func() { f.Close() }, nil
}

func main() {
	rootCmd.Flags().IntVar(&flagCols, "cols", 0, "initial width in columns; replaced by the host window width when the session starts")
	rootCmd.Flags().IntVar(&flagRows, "rows", 0, "initial height in rows; replaced by the host window height when the session starts")
	rootCmd.Flags().StringVar(&flagShell, "shell", "", "command to run (default: $SHELL)")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "append logs to this file")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
