package main

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/stepgraph/internal/workflows"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		inputs []string
		thread string
	)
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow, resuming the thread when it has a checkpoint",
		Example: `  stepgraph run text --input input="hello world"
  stepgraph run approval --thread doc-1 --store sqlite --input document="delete old rows"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.catalog.Get(args[0])
			if err != nil {
				return err
			}
			pairs, err := parsePairs(inputs)
			if err != nil {
				return err
			}
			input, err := w.ParseInput(pairs)
			if err != nil {
				return err
			}

			w, result, err := a.runner().Run(cmd.Context(), w.Name, thread, input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), workflows.NewReport(w, result))
		},
	}
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "field value as key=value (repeatable)")
	cmd.Flags().StringVarP(&thread, "thread", "t", "", "thread id (generated when empty)")
	return cmd
}
