package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/importer"
)

func newBanksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "List the supported banks and statement formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := importer.DefaultRegistry()
			for _, bank := range reg.Banks() {
				p, err := reg.Resolve(bank)
				if err != nil {
					return err
				}
				formats := make([]string, 0, len(p.Formats()))
				for _, f := range p.Formats() {
					formats = append(formats, string(f))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", bank, strings.Join(formats, ", "))
			}
			return nil
		},
	}
}
