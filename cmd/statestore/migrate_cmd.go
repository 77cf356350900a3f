package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DrayChou/gaccode-statusline/session"
)

func newMigrateCommand(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move a legacy flat session-mapping file into the sharded store",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := session.New(a.cacheDir(), session.WithLogger(a.logger))
			path := source
			if path == "" {
				path = filepath.Join(a.cacheDir(), "session-mappings.json")
			}
			n, err := reg.MigrateFlatFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d session(s) from %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "path to the legacy mapping file")
	return cmd
}
