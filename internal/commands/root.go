package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/buildinfo"
	"github.com/conciliar-dev/conciliar/internal/config"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:     "conciliar",
		Short:   "Bank statement import and client reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.FileName, "path to "+config.FileName)

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(opts),
		newReconcileCommand(opts),
		newHistoryCommand(opts),
		newTransactionsCommand(opts),
		newReportCommand(opts),
		newServeCommand(opts),
		newBanksCommand(),
		newCategoriesCommand(opts),
	)

	return rootCmd
}
