package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the stored records",
	Long: `The JSON records are the source of truth; the SQLite index only speeds up
'list' and 'serve'. reindex drops the index contents and loads every record again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := a.requireIndex()
		if err != nil {
			return err
		}
		n, err := idx.Rebuild(cmd.Context(), a.store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d record(s) into %s\n", n, idx.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
