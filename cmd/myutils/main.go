package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"myutils/internal/exitcodes"
)

// exitError carries the process exit code out of a command. A nil err
// exits with code but prints nothing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "myutils",
		Short: "Maven cache cleaner and string validators",
		Long: `myutils removes stale download markers (*.lastUpdated) and the empty
directories they leave behind, and checks strings against common formats
(phone, QQ, email, Chinese, IPv4, IPv6, length, national ID).`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newCleanCmd(), newHistoryCmd(), newValidCmd())
	return root
}

// run executes the CLI and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitcodes.Success
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if msg := ee.Error(); msg != "" {
			fmt.Fprintf(stderr, "ERROR: %s\n", msg)
		}
		return ee.code
	}

	// Anything cobra rejects before a command runs is a usage error
	fmt.Fprintf(stderr, "ERROR: %v\n", err)
	return exitcodes.InvalidConfig
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
