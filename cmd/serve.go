package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/exa-sheets/internal/server"
	"github.com/sells-group/exa-sheets/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for uploading, sampling and downloading sheets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filler, err := initFiller(0)
		if err != nil {
			return err
		}

		m := session.NewManager(st, filler, session.WithSampleRows(cfg.Fill.SampleRows))
		srv := server.New(m,
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
			server.WithMaxUploadBytes(cfg.Server.MaxUploadMB<<20),
			server.WithPreviewRows(cfg.Fill.SampleRows),
		)

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}
		return srv.Run(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
