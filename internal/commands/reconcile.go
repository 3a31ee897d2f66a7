package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/reconcile"
)

func newReconcileCommand(root *rootOptions) *cobra.Command {
	var req reconcile.Request
	var direction string
	var expectedVersion int

	cmd := &cobra.Command{
		Use:   "reconcile <transaction-id>",
		Short: "Assign a transaction to a client, process and category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req.TransactionID = id
			if direction != "" {
				d, err := model.ParseDirection(direction)
				if err != nil {
					return &model.ValidationError{Field: "direction", Reason: err.Error()}
				}
				req.Direction = d
			}
			if expectedVersion >= 0 {
				v := expectedVersion
				req.ExpectedVersion = &v
			}

			e, err := openEnv(cmd.Context(), root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			tx, err := e.engine().Reconcile(cmd.Context(), req)
			if err != nil {
				return err
			}
			printTransaction(cmd.OutOrStdout(), tx)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Client, "client", "", "client the movement belongs to (required)")
	cmd.Flags().StringVar(&req.Process, "process", "", "client process or case reference")
	cmd.Flags().StringVar(&req.Category, "category", "", "category code (required)")
	cmd.Flags().StringVar(&direction, "direction", "", "IN or OUT (defaults to the current direction)")
	cmd.Flags().StringVar(&req.Actor, "actor", os.Getenv("USER"), "user recorded in the audit trail")
	cmd.Flags().IntVar(&expectedVersion, "expected-version", -1, "fail unless the transaction is at this version")

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &model.ValidationError{Field: "id", Reason: fmt.Sprintf("invalid transaction id %q", s)}
	}
	return id, nil
}

func printTransaction(w io.Writer, tx model.Transaction) {
	fmt.Fprintf(w, "Transaction %d (version %d)\n", tx.ID, tx.Version)
	fmt.Fprintf(w, "  %s  %s %s  %s\n", tx.Date.Format(model.DateLayout), tx.Direction, tx.Amount.StringFixed(2), tx.Description)
	fmt.Fprintf(w, "  bank: %s  company: %s\n", tx.Bank, tx.Company)
	if tx.Reconciled() {
		fmt.Fprintf(w, "  client: %s  process: %s  category: %s  by %s\n", tx.Client, tx.Process, tx.Category, tx.By)
	} else {
		fmt.Fprintln(w, "  unreconciled")
	}
}
