package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/pipeline"
)

type importOptions struct {
	bank             string
	company          string
	account          string
	confirm          bool
	override         bool
	acceptDuplicates []int
	actor            string
	asJSON           bool
}

func newImportCommand(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Preview a bank statement, and commit it with --confirm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.bank, "bank", "", "issuing bank (required)")
	_ = cmd.MarkFlagRequired("bank")
	cmd.Flags().StringVar(&opts.company, "company", "", "company that holds the account (required)")
	_ = cmd.MarkFlagRequired("company")
	cmd.Flags().StringVar(&opts.account, "account", "", "bank account (defaults to the configured account)")
	cmd.Flags().BoolVar(&opts.confirm, "confirm", false, "commit the statement after the preview")
	cmd.Flags().BoolVar(&opts.override, "override", false, "commit a statement that was already imported, skipping stored rows")
	cmd.Flags().IntSliceVar(&opts.acceptDuplicates, "accept-duplicates", nil, "flagged rows to commit anyway")
	cmd.Flags().StringVar(&opts.actor, "actor", os.Getenv("USER"), "user recorded as committing the batch")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the staged batch as JSON")

	return cmd
}

func runImport(cmd *cobra.Command, root *rootOptions, path string, opts importOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading statement: %w", err)
	}

	e, err := openEnv(ctx, root.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.pipeline()
	if err != nil {
		return err
	}
	account := opts.account
	if account == "" {
		account, _ = e.cfg.AccountFor(opts.bank, opts.company)
	}

	b, err := p.Stage(ctx, pipeline.Upload{
		Name:    filepath.Base(path),
		Data:    data,
		Bank:    opts.bank,
		Company: opts.company,
		Account: account,
	})
	if err != nil {
		var rejected *model.ImportRejectedError
		if errors.As(err, &rejected) && b != nil {
			printRowErrors(out, b)
		}
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encoding batch: %w", err)
		}
	} else {
		printBatch(out, b)
	}

	if !opts.confirm {
		fmt.Fprintln(out, "Not committed. Run again with --confirm to store these transactions.")
		return nil
	}

	res, err := p.Commit(ctx, b, pipeline.CommitOptions{
		Confirm:          true,
		Override:         opts.override,
		AcceptDuplicates: opts.acceptDuplicates,
		Actor:            opts.actor,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Committed %d transactions from %s (batch %s)\n", len(res.TransactionIDs), b.SourceName, res.BatchID)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped duplicate rows: %v\n", res.Skipped)
	}
	if len(res.Existing) > 0 {
		fmt.Fprintf(out, "Rows already stored: %v\n", res.Existing)
	}
	return nil
}

func printBatch(w io.Writer, b *model.ImportBatch) {
	fmt.Fprintf(w, "Batch %s: %s %s statement %s (%s)\n", b.ID, b.Bank, b.Format, b.SourceName, b.Status)
	if b.OpeningBalance.Valid {
		fmt.Fprintf(w, "Opening balance: %s\n", b.OpeningBalance.Decimal.StringFixed(2))
	}
	if b.Status == model.BatchDuplicateWhole {
		fmt.Fprintln(w, "This document was already imported; use --override to commit the remaining rows.")
	}
	if len(b.Candidates) == 0 {
		fmt.Fprintln(w, "No movements found.")
		return
	}

	fmt.Fprintf(w, "%4s  %-10s  %12s  %-3s  %12s  %s\n", "ROW", "DATE", "AMOUNT", "DIR", "BALANCE", "DESCRIPTION")
	for _, c := range b.Candidates {
		balance := "-"
		if c.Balance.Valid {
			balance = c.Balance.Decimal.StringFixed(2)
		}
		note := ""
		if c.Duplicate {
			note = fmt.Sprintf("  [duplicate of #%d]", c.DuplicateOf)
		}
		fmt.Fprintf(w, "%4d  %-10s  %12s  %-3s  %12s  %s%s\n",
			c.Row, c.Date.Format(model.DateLayout), c.Amount.StringFixed(2), c.Direction, balance, c.Description, note)
	}
}

func printRowErrors(w io.Writer, b *model.ImportBatch) {
	fmt.Fprintf(w, "Statement %s rejected:\n", b.SourceName)
	for _, re := range b.Errors {
		fmt.Fprintf(w, "  row %d: %s\n", re.Row, re.Message)
	}
}
