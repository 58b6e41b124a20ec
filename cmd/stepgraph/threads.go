package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/query"
)

func newThreadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect and delete checkpointed threads",
	}
	cmd.AddCommand(newThreadsListCmd(a), newThreadsShowCmd(a), newThreadsDeleteCmd(a))
	return cmd
}

func newThreadsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "THREAD\tSIZE\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.ThreadID, info.Size, info.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newThreadsShowCmd(a *app) *cobra.Command {
	var name, arg string
	cmd := &cobra.Command{
		Use:   "show <thread>",
		Short: "Print a thread's snapshot, or one query over it",
		Example: `  stepgraph threads show doc-1
  stepgraph threads show doc-1 --query field --arg status`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec := query.NewExecutor(query.StoreLoader(a.store))
			if name == "" {
				snap, err := exec.Snapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snap)
			}
			v, err := exec.Execute(cmd.Context(), args[0], name, arg)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVarP(&name, "query", "q", "", "query name (status, next_step, pending_gate, fields, field, errors, log, snapshot)")
	cmd.Flags().StringVar(&arg, "arg", "", "query argument, such as the field name")
	return cmd
}

func newThreadsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread>...",
		Short: "Delete threads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := a.store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", id)
			}
			return nil
		},
	}
}
