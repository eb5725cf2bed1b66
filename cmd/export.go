package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/store"
)

var (
	exportOut   string
	exportSince string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all records to a zstd-compressed JSONL archive",
	Long: `Writes one JSON record per line, compressed with zstd.

Read it back with: zstd -dc insights.jsonl.zst | jq .`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		since, err := store.ParseSince(exportSince, time.Now())
		if err != nil {
			return err
		}
		if exportOut == "" {
			return errors.New("--out is required")
		}

		f, err := os.OpenFile(exportOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		n, err := store.Export(f, a.store, since)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "insights.jsonl.zst", "archive path")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only records generated since (7d, 2025-06-01)")
	rootCmd.AddCommand(exportCmd)
}
