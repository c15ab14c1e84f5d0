package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gonzalop/asyncftp"
)

func newListCmd(a *app) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:     "list [PATH]",
		Aliases: []string{"ls"},
		Short:   "List a remote directory",
		Long: `List prints the entries of a remote directory, relative to the server URL.
With --match only entries whose name matches the glob are printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) > 0 {
				dir = args[0]
			}

			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			items, err := s.List(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if match != "" {
				items, err = asyncftp.FilterResources(items, match)
				if err != nil {
					return errors.Wrap(err, "--match")
				}
			}

			for _, item := range items {
				a.out.resource(item)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&match, "match", "m", "", "only print entries whose name matches this glob")
	return cmd
}
