package cmd

import (
	"github.com/spf13/cobra"

	"github.com/franckalain/grocerylens/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := server.New(db, scanner, log)
		return srv.Start(cfg.Server.Port, cfg.Server.StaticDir)
	},
}
