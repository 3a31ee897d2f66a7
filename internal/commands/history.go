package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/auditlog"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "history <transaction-id>",
		Short: "Show the reconciliation audit trail of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			entries, err := e.engine().History(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asCSV {
				return auditlog.WriteEntries(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "Transaction %d has never been reconciled.\n", id)
				return nil
			}
			for _, en := range entries {
				fmt.Fprintf(out, "%s  %s  client %q -> %q  process %q -> %q  category %q -> %q  direction %s -> %s\n",
					en.At.Format("2006-01-02 15:04:05"), en.Actor,
					en.Prior.Client, en.Next.Client,
					en.Prior.Process, en.Next.Process,
					en.Prior.Category, en.Next.Category,
					en.Prior.Direction, en.Next.Direction)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the audit trail as CSV")

	return cmd
}
