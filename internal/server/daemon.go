package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-tracker/internal/ingest"
)

const shutdownGrace = 30 * time.Second

// Serve runs the gRPC health server, the HTTP event/upload server and the
// inbox watcher until ctx is done, then drains jobs and stops everything.
func (a *App) Serve(ctx context.Context) error {
	grpcLis, err := net.Listen("tcp", a.Config.Server.GRPCAddr)
	if err != nil {
		a.Logger.Error("failed to listen on address", "addr", a.Config.Server.GRPCAddr, "error", err)
		return err
	}
	httpLis, err := net.Listen("tcp", a.Config.Server.EventsAddr)
	if err != nil {
		_ = grpcLis.Close()
		a.Logger.Error("failed to listen on address", "addr", a.Config.Server.EventsAddr, "error", err)
		return err
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	httpServer := &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("grpc health listening", "addr", grpcLis.Addr().String())
		return grpcServer.Serve(grpcLis)
	})
	g.Go(func() error {
		a.Logger.Info("events listening", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if len(a.Config.Inbox.Dirs) > 0 {
		g.Go(func() error {
			return a.Ingestor.Watch(gctx, ingest.WatchConfig{
				Roots:       a.Config.Inbox.Dirs,
				InitialScan: a.Config.Inbox.InitialScan,
				Debounce:    a.Config.Inbox.Debounce,
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down...")
		hs.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.Orchestrator.Shutdown(sctx); err != nil {
			a.Logger.Warn("jobs still running at shutdown", "error", err)
		}
		if err := httpServer.Shutdown(sctx); err != nil {
			a.Logger.Warn("http shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
