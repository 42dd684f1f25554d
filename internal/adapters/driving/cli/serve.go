package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quillworks/driveanswer/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the HTTP server exposing POST /query, GET /history and
GET /healthz. The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	addr := app.settings.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := httpapi.NewServer(app.answers, app.history, httpapi.Config{Addr: addr})
	return srv.Run(ctx)
}
