package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pairchat/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string
	configPath string
	verbose    bool
	timeout    time.Duration

	wire *app.Wire
)

// Execute runs the root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pairchat",
		Short:        "End-to-end encrypted one-to-one chat over a shared graph",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(resolveConfigPath())
			if err != nil {
				return err
			}
			if home != "" {
				cfg.Home = home
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			log, err := app.NewLogger(cfg.Logging, verbose)
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cfg, log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if wire != nil {
				wire.Close()
				_ = wire.Log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.pairchat)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase that protects your keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file, .yaml or .toml (default <home>/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "deadline for one-shot commands")

	root.AddCommand(initCmd(), whoamiCmd(), contactsCmd(), sendCmd(), nudgeCmd(), chatCmd(), presenceCmd())
	return root
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	dir := home
	if dir == "" {
		if env := os.Getenv(app.EnvHome); env != "" {
			dir = env
		} else if d, err := app.DefaultHome(); err == nil {
			dir = d
		} else {
			return ""
		}
	}
	return filepath.Join(dir, "config.yaml")
}

// unlock loads the identity with the --passphrase flag.
func unlock() (*app.Account, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p)")
	}
	return wire.Unlock(passphrase)
}

// withRuntime runs the event loop and the relay link while fn runs. SIGINT
// and SIGTERM cancel fn's context only; the runtime stops after fn returns so
// fn can still flush writes on the way out.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	runCtx, stopRuntime := context.WithCancel(cmd.Context())
	defer stopRuntime()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return wire.Run(gctx) })
	g.Go(func() error {
		defer stopRuntime()
		ctx, stop := signal.NotifyContext(gctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// oneShot is withRuntime bounded by --timeout.
func oneShot(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	return withRuntime(cmd, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx)
	})
}
