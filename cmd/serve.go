package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored insights over a local read-only HTTP API",
	Long: `Starts a JSON API on a loopback address:

  GET /healthz
  GET /api/v1/insights?outcome=&tag=&since=&limit=
  GET /api/v1/insights/{session-id}

Non-loopback bind addresses are rejected; records never leave the machine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := server.CheckLoopback(serveAddr); err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := a.requireIndex()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Printf("Serving insights on http://%s (Ctrl-C to stop)\n", serveAddr)
		return server.New(a.store, idx).ListenAndServe(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8765", "loopback address to listen on")
	rootCmd.AddCommand(serveCmd)
}
