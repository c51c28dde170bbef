package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/pie/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove node_modules and optionally the content store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _ := cmd.Flags().GetBool("store")
			all, _ := cmd.Flags().GetBool("all")
			dir, _ := cmd.Flags().GetString("dir")

			opts := app.CleanOptions{ProjectDir: dir}

			switch {
			case all:
				opts.Modules = true
				opts.Store = true
			case store:
				opts.Store = true
			default:
				opts.Modules = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolP("store", "s", false, "Clean the content store only")
	cmd.Flags().BoolP("all", "a", false, "Clean node_modules and the content store")
	cmd.Flags().StringP("dir", "C", ".", "Project directory")

	return cmd
}
