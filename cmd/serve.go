package cmd

import (
	"github.com/emrgen/docgen/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var httpPort, grpcPort string

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the http api and the grpc health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if httpPort != "" {
				cfg.Server.HTTPPort = httpPort
			}
			if grpcPort != "" {
				cfg.Server.GRPCPort = grpcPort
			}

			app, err := server.NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			return server.NewServer(cfg, app).Start()
		},
	}

	command.Flags().StringVar(&httpPort, "http-port", "", "http port (overrides SERVER_HTTP_PORT)")
	command.Flags().StringVar(&grpcPort, "grpc-port", "", "grpc port (overrides SERVER_GRPC_PORT)")

	return command
}
