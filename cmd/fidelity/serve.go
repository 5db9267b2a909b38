package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/api"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/metrics"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/rpc"
)

const (
	serverShutdownWait = 5 * time.Second
	serverReadTimeout  = 30 * time.Second
	serverWriteTimeout = 60 * time.Second
)

// #region serve

func newServeCmd(a *app) *cobra.Command {
	var httpAddr, grpcAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the gRPC scoring service",
		Long:  "Starts the HTTP API and the gRPC service. Pass an empty address to disable either one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("http-addr") {
				a.cfg.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc-addr") {
				a.cfg.GRPCAddr = grpcAddr
			}
			if a.cfg.HTTPAddr == "" && a.cfg.GRPCAddr == "" {
				return usageError("nothing to serve: both --http-addr and --grpc-addr are empty")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (default from config)")
	return cmd
}

// serve runs both servers until ctx is cancelled or one of them fails.
func (a *app) serve(ctx context.Context) error {
	catalog, err := a.catalog()
	if err != nil {
		return err
	}
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("ping ledger: %w", err)
	}

	m := metrics.New()
	auditor := audit.NewAuditor(catalog, st, a.logger)

	// Bind both addresses before any server goroutine starts.
	var httpLis, grpcLis net.Listener
	if a.cfg.HTTPAddr != "" {
		if httpLis, err = net.Listen("tcp", a.cfg.HTTPAddr); err != nil {
			return fmt.Errorf("http listen %s: %w", a.cfg.HTTPAddr, err)
		}
	}
	if a.cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", a.cfg.GRPCAddr); err != nil {
			if httpLis != nil {
				httpLis.Close()
			}
			return fmt.Errorf("grpc listen %s: %w", a.cfg.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if httpLis != nil {
		handler := api.NewHandler(auditor, st, m, a.logger)
		srv := &http.Server{
			Handler:      api.NewRouter(handler, a.cfg.CORSOrigins),
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
		}
		g.Go(func() error {
			a.logger.Info("http server started", zap.String("addr", httpLis.Addr().String()))
			if err := srv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), serverShutdownWait)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				a.logger.Error("http shutdown", zap.Error(err))
			}
			return nil
		})
	}

	if grpcLis != nil {
		gs := rpc.NewGRPCServer(rpc.NewServer(a.logger, m), a.logger)
		g.Go(func() error {
			a.logger.Info("grpc server started", zap.String("addr", grpcLis.Addr().String()))
			if err := gs.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			stopped := make(chan struct{})
			go func() {
				gs.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(serverShutdownWait):
				gs.Stop()
			}
			return nil
		})
	}

	err = g.Wait()
	a.logger.Info("servers stopped", zap.Error(err))
	return err
}

// #endregion serve
