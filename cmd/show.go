package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/store"
)

var (
	showJSON    bool
	showVerbose bool
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a stored insight record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := resolveStoredID(a.store, args[0])
		if err != nil {
			return err
		}
		rec, err := a.store.Load(id)
		if err != nil {
			return err
		}

		if showJSON {
			return writeJSON(cmd.OutOrStdout(), rec)
		}
		printRecord(cmd.OutOrStdout(), rec, showVerbose)
		return nil
	},
}

// resolveStoredID expands a prefix to the id of an existing record
func resolveStoredID(fs *store.FileStore, prefix string) (string, error) {
	if fs.Exists(prefix) {
		return prefix, nil
	}
	ids, err := fs.IDs()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("ambiguous session id '%s' matches %d records", prefix, len(matches))
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the raw record")
	showCmd.Flags().BoolVarP(&showVerbose, "verbose", "v", false, "include tool breakdown and assessment")
	rootCmd.AddCommand(showCmd)
}
