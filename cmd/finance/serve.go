package main

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mp3fbf/finance-analyzer/internal/api"
	"github.com/mp3fbf/finance-analyzer/internal/certs"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the discovery and review HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = appConfig.Server.Addr
			}
			if appConfig.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			a, err := newDiscoveryApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			opts := api.Options{
				Logger:    slog.Default(),
				Extractor: a.extractor,
				Metrics:   a.metrics.Handler(),
			}
			if useTLS, _ := cmd.Flags().GetBool("tls"); useTLS || appConfig.Server.TLS {
				opts.TLS, err = certs.TLSConfig(certs.NewFileManager(appConfig.Server.CertDir, certs.Options{}))
				if err != nil {
					return fmt.Errorf("failed to prepare TLS certificate: %w", err)
				}
			}

			srv := api.NewServer(a.storage, a.workflow, a.validator, opts)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default server.addr)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate (default server.tls)")
	return cmd
}
