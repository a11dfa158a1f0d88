package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/emrgen/docgen/internal/server"
	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	var addr string
	var timeout time.Duration

	command := &cobra.Command{
		Use:   "health",
		Short: "check the grpc health service of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := server.CheckHealth(ctx, addr)
			if err != nil {
				return err
			}

			fmt.Println(status.String())
			return nil
		},
	}

	command.Flags().StringVar(&addr, "addr", "localhost:4000", "grpc address")
	command.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	return command
}
