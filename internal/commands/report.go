package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/report"
)

func newReportCommand(root *rootOptions) *cobra.Command {
	var client, company, month, xlsxPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a client's reconciled movements for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			r, err := e.reports().Aggregate(cmd.Context(), client, company, month)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if xlsxPath != "" {
				if err := writeReportFile(xlsxPath, r); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s\n", xlsxPath)
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}

			fmt.Fprintf(out, "Client %s, %s\n", r.Client, r.Month)
			fmt.Fprintf(out, "Opening balance: %12s\n", r.Opening.StringFixed(2))
			for _, row := range r.Rows {
				fmt.Fprintf(out, "  %s  %-20s  %12s  %12s  %12s  %s\n",
					row.Date.Format("02/01/2006"), row.Category,
					row.In.StringFixed(2), row.Out.StringFixed(2), row.Balance.StringFixed(2), row.Description)
			}
			fmt.Fprintf(out, "Total in:        %12s\n", r.TotalIn.StringFixed(2))
			fmt.Fprintf(out, "Total out:       %12s\n", r.TotalOut.StringFixed(2))
			fmt.Fprintf(out, "Closing balance: %12s\n", r.Closing.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "client (required)")
	_ = cmd.MarkFlagRequired("client")
	cmd.Flags().StringVar(&company, "company", "", "restrict to one company")
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("month")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write the report to this spreadsheet")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

func writeReportFile(path string, r *model.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.WriteXLSX(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
