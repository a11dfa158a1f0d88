// Package server exposes the document services over HTTP and answers gRPC
// health checks, running both until the process is signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/docgen/internal/config"
	"github.com/emrgen/docgen/internal/jobs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server runs the HTTP API, the gRPC health service and the background jobs.
type Server struct {
	cfg *config.Config
	app *App
}

func NewServer(cfg *config.Config, app *App) *Server {
	return &Server{cfg: cfg, app: app}
}

// Start blocks until SIGTERM, SIGINT or SIGTSTP, then stops both servers.
func (s *Server) Start() error {
	grpcPort := ":" + s.cfg.Server.GRPCPort
	httpPort := ":" + s.cfg.Server.HTTPPort

	gl, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		_ = gl.Close()
		return err
	}

	grpcServer := grpc.NewServer(serverInterceptors())
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	handler := NewHandler(s.app.Templates, s.app.Generator, s.app.Documents).
		WithCORS(s.cfg.Server.AllowedOrigins).
		WithTimeout(s.cfg.Server.RequestTimeout)

	restServer := &http.Server{
		Addr:              httpPort,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	executor := jobs.NewTaskExecutor(nil, []jobs.CronJob{
		jobs.NewLifecycleTask(s.app.Lifecycle, s.cfg.Lifecycle.Schedule, 0),
		jobs.NewCacheStatsTask("", s.app.TemplateCache, s.app.Previews),
	})
	if err := executor.Run(); err != nil {
		_ = gl.Close()
		_ = rl.Close()
		return err
	}

	// make sure to wait for the servers to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting http server on: ", httpPort)
		if err := restServer.Serve(rl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("error starting http server: %v", err)
		}
		logrus.Infof("http server stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting grpc server on: ", grpcPort)
		if err := grpcServer.Serve(gl); err != nil {
			logrus.Infof("grpc failed to start: %v", err)
		}
		logrus.Infof("grpc server stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	<-sigs
	fmt.Println()

	healthServer.Shutdown()
	executor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := restServer.Shutdown(ctx); err != nil {
		logrus.Errorf("error stopping http server: %v", err)
	}
	grpcServer.GracefulStop()

	wg.Wait()
	s.app.Close()

	return nil
}

// CheckHealth asks the gRPC health service at addr for the overall status.
func CheckHealth(ctx context.Context, addr string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(UnaryRequestTimeInterceptor()),
	)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer conn.Close()

	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}

	return res.GetStatus(), nil
}
