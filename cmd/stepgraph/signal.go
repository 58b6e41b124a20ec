package main

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/signal"
)

func newSignalCmd(a *app) *cobra.Command {
	var (
		workflow string
		inputs   []string
		sender   string
	)
	cmd := &cobra.Command{
		Use:     "signal <thread> <label>",
		Short:   "Resume a paused thread by sending a label to its gate",
		Example: `  stepgraph signal doc-1 approve --workflow approval --store sqlite`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, label := args[0], args[1]
			r := a.runner()
			w, err := r.Workflow(workflow)
			if err != nil {
				return err
			}
			gate, err := r.PendingGate(cmd.Context(), w, thread)
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

			d := signal.NewDispatcher(signal.NewMemoryStore()).WithLogger(a.logger)
			if err := r.HandleSignals(d); err != nil {
				return err
			}
			sig := signal.New(thread, w.Name, w.Graph.SignalField(gate), label).
				WithInput(input).
				WithSender(sender)
			out, err := d.Send(cmd.Context(), sig)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&workflow, "workflow", "w", "", "workflow the thread runs (required)")
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "extra field value as key=value (repeatable)")
	cmd.Flags().StringVar(&sender, "sender", "cli", "sender recorded on the signal")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}
