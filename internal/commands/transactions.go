package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/store"
)

type transactionsOptions struct {
	company string
	account string
	bank    string
	client  string
	process string
	from    string
	to      string
	all     bool
	limit   int
	asJSON  bool
}

func newTransactionsCommand(root *rootOptions) *cobra.Command {
	var opts transactionsOptions

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List committed transactions, by default those still waiting for reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.filter()
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			txs, err := e.engine().List(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				if txs == nil {
					txs = []model.Transaction{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(txs)
			}
			printTransactions(out, txs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.company, "company", "", "only this company")
	cmd.Flags().StringVar(&opts.account, "account", "", "only this bank account")
	cmd.Flags().StringVar(&opts.bank, "bank", "", "only this bank")
	cmd.Flags().StringVar(&opts.client, "client", "", "only transactions reconciled to this client")
	cmd.Flags().StringVar(&opts.process, "process", "", "only transactions reconciled to this process")
	cmd.Flags().StringVar(&opts.from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "date after the last one, YYYY-MM-DD")
	cmd.Flags().BoolVar(&opts.all, "all", false, "include reconciled transactions")
	cmd.Flags().IntVar(&opts.limit, "limit", 200, "maximum number of transactions, 0 for no limit")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the transactions as JSON")

	return cmd
}

func (o transactionsOptions) filter() (store.TransactionFilter, error) {
	if o.limit < 0 {
		return store.TransactionFilter{}, &model.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	f := store.TransactionFilter{
		Company:          o.company,
		Account:          o.account,
		Bank:             strings.ToUpper(o.bank),
		Client:           o.client,
		Process:          o.process,
		UnreconciledOnly: !o.all,
		Limit:            o.limit,
	}
	var err error
	if f.From, err = flagDate("from", o.from); err != nil {
		return f, err
	}
	if f.To, err = flagDate("to", o.to); err != nil {
		return f, err
	}
	return f, nil
}

func flagDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: name, Reason: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", value)}
	}
	return t, nil
}

func printTransactions(w io.Writer, txs []model.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}
	fmt.Fprintf(w, "%6s  %-10s  %-10s  %-12s  %12s  %-3s  %-16s  %s\n",
		"ID", "DATE", "BANK", "COMPANY", "AMOUNT", "DIR", "CLIENT", "DESCRIPTION")
	for _, tx := range txs {
		client := tx.Client
		if client == "" {
			client = "-"
		}
		fmt.Fprintf(w, "%6d  %-10s  %-10s  %-12s  %12s  %-3s  %-16s  %s\n",
			tx.ID, tx.Date.Format(model.DateLayout), tx.Bank, tx.Company, tx.Amount.StringFixed(2),
			tx.Direction, client, tx.Description)
	}
}
