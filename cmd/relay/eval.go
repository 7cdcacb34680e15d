package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/butlerbot/relay/internal/calc"
)

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an arithmetic expression the way the evaluate tool does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := calc.Evaluate(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), calc.FormatResult(v))
			return nil
		},
	}
}
