package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"myutils/internal/exitcodes"
	"myutils/internal/metrics"
	"myutils/internal/validate"
)

type validFlags struct {
	min  int
	max  int
	list bool
}

func newValidCmd() *cobra.Command {
	f := &validFlags{}
	c := &cobra.Command{
		Use:   "valid <rule> <value>",
		Short: "Check a string against a format rule",
		Long: `Print true or false for value checked against rule, exiting 1 on false.
Rules: ` + strings.Join(validate.RuleNames(), ", ") + `.
The length rule counts characters and takes --min and --max.`,
		Example: `  myutils valid phone 13800138000
  myutils valid idcard 11010519491231002X
  myutils valid length 你好 --min 1 --max 4
  myutils valid --list`,
		Args: func(cmd *cobra.Command, args []string) error {
			if f.list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValid(cmd, f, args)
		},
	}
	c.Flags().IntVar(&f.min, "min", 0, "Minimum length for the length rule")
	c.Flags().IntVar(&f.max, "max", math.MaxInt32, "Maximum length for the length rule")
	c.Flags().BoolVar(&f.list, "list", false, "List available rules")
	return c
}

func runValid(cmd *cobra.Command, f *validFlags, args []string) error {
	w := cmd.OutOrStdout()
	if f.list {
		for _, name := range validate.RuleNames() {
			fmt.Fprintln(w, name)
		}
		return nil
	}

	rule, value := args[0], args[1]

	var ok bool
	if rule == "length" {
		ok = validate.ValidLength(value, f.min, f.max)
	} else {
		if cmd.Flags().Changed("min") || cmd.Flags().Changed("max") {
			return withCode(exitcodes.InvalidConfig, fmt.Errorf("--min/--max only apply to the length rule"))
		}
		var err error
		if ok, err = validate.Check(rule, value); err != nil {
			if errors.Is(err, validate.ErrUnknownRule) {
				err = fmt.Errorf("%w (available: %s)", err, strings.Join(validate.RuleNames(), ", "))
			}
			return withCode(exitcodes.InvalidConfig, err)
		}
	}

	metrics.Init()
	metrics.RecordValidation(rule, ok)

	printBool(w, ok)
	if !ok {
		return withCode(exitcodes.ValidationFalse, nil)
	}
	return nil
}

// printBool writes true in green and false in red when w is the terminal
func printBool(w io.Writer, ok bool) {
	c := color.New(color.FgRed)
	if ok {
		c = color.New(color.FgGreen)
	}
	if f, isFile := w.(*os.File); !isFile || f != os.Stdout {
		c.DisableColor()
	}
	_, _ = c.Fprintln(w, ok)
}
