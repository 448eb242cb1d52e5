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

	"pairchat/internal/app"
	"pairchat/internal/graph"
	"pairchat/internal/relay"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr      string
		journal   string
		logLevel  string
		logFormat string
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Serve a shared pairchat graph",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := app.NewLogger(app.LoggingConfig{Level: logLevel, Format: logFormat}, false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, log, addr, journal)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&journal, "journal", "", "bbolt file that persists the graph (default: memory only)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().StringVar(&logFormat, "log-format", "console", "console or json")
	return cmd
}

func serve(ctx context.Context, log *zap.Logger, addr, journal string) error {
	var opts []graph.Option
	opts = append(opts, graph.WithLogger(log.Named("graph")))
	if journal != "" {
		j, err := graph.OpenBoltJournal(journal)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				log.Warn("close journal", zap.Error(err))
			}
		}()
		opts = append(opts, graph.WithJournal(j))
	}
	g, err := graph.NewMemory(opts...)
	if err != nil {
		return fmt.Errorf("restore graph: %w", err)
	}

	srv := relay.NewServer(g, log.Named("relay"))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           accessLog(log.Named("http"), srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("relay listening", zap.String("addr", addr), zap.String("journal", journal))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		// Hijacked websockets are not tracked by Shutdown.
		srv.DropConnections()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("relay stopped")
		return nil
	})
	return eg.Wait()
}
