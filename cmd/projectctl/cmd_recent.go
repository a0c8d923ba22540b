package main

import (
	"fmt"
	"text/tabwriter"

	"projectstore/internal/auth"

	"github.com/spf13/cobra"
)

func newRecentCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show or edit the recently used projects",
		Args:  cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			profile := e.user.Profile()
			if profile == nil {
				return auth.ErrNoToken
			}
			entries, err := e.recent.List(cmd.Context(), profile.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tID\tNAME\tUSED")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.ProviderName, entry.FileMetadata.FileIdentifier,
					entry.Name, entry.UsedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		}),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <provider> <file-identifier>",
		Short: "Forget a recent project",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			profile := e.user.Profile()
			if profile == nil {
				return auth.ErrNoToken
			}
			return e.recent.Remove(cmd.Context(), profile.ID, args[0], args[1])
		}),
	})
	return cmd
}
