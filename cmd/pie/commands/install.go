package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/pie/internal/app"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install [specifiers...]",
		Aliases: []string{"i", "add"},
		Short:   "Resolve, fetch, and link packages into node_modules",
		Long: `Resolve the given specifiers (name, name@range, @scope/name@tag) against
the registry, fetch every package into the content store, and link the
result into ./node_modules. Without specifiers the lockfile is installed.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _ := cmd.Flags().GetString("registry")
			store, _ := cmd.Flags().GetString("store")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			frozen, _ := cmd.Flags().GetBool("frozen-lockfile")
			dir, _ := cmd.Flags().GetString("dir")

			res, err := c.app.Install(cmd.Context(), args, app.InstallOptions{
				ProjectDir:     dir,
				Registry:       registry,
				StoreDir:       store,
				Concurrency:    concurrency,
				FrozenLockfile: frozen,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d packages installed (%d fetched, %d from store)\n",
				res.Nodes, res.Fetched, res.Cached)
			return nil
		},
	}

	cmd.Flags().String("registry", "", "Registry base URL (overrides configuration)")
	cmd.Flags().String("store", "", "Content store directory (overrides configuration)")
	cmd.Flags().IntP("concurrency", "j", 0, "Maximum parallel network requests")
	cmd.Flags().Bool("frozen-lockfile", false, "Fail instead of resolving when the lockfile is out of date")
	cmd.Flags().StringP("dir", "C", ".", "Project directory")

	return cmd
}
