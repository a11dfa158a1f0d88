// Command debug runs the service in memory with debug logging.
package main

import (
	"context"
	"os"

	"github.com/emrgen/docgen/internal/config"
	"github.com/emrgen/docgen/internal/server"
	"github.com/sirupsen/logrus"
)

func main() {
	setDefault("LOG_LEVEL", "debug")
	setDefault("DB_DSN", "file:debug?mode=memory&cache=shared")
	setDefault("STORAGE_KIND", "memory")
	setDefault("PREVIEW_MIRROR", "none")

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	cfg.SetupLogging()

	if port := os.Getenv("GRPC_PORT"); port != "" {
		cfg.Server.GRPCPort = port
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		cfg.Server.HTTPPort = port
	}

	app, err := server.NewApp(context.Background(), cfg)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := server.NewServer(cfg, app).Start(); err != nil {
		logrus.Fatal(err)
	}
}

func setDefault(key, value string) {
	if _, ok := os.LookupEnv(key); !ok {
		_ = os.Setenv(key, value)
	}
}
