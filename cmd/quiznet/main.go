// Command quiznet runs the multiplayer quiz game server: TCP game
// transport, UDP LAN discovery and an optional Prometheus endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/hactazia/quiznet/internal/account"
	"github.com/hactazia/quiznet/internal/config"
	"github.com/hactazia/quiznet/internal/db"
	"github.com/hactazia/quiznet/internal/discovery"
	"github.com/hactazia/quiznet/internal/game"
	"github.com/hactazia/quiznet/internal/metrics"
	"github.com/hactazia/quiznet/internal/question"
	"github.com/hactazia/quiznet/internal/server"
)

var version = "dev"

type flags struct {
	configPath string
	tcpPort    int
	udpPort    int
	name       string
	questions  string
	accounts   string
	metrics    string
	logLevel   string
}

func main() {
	if err := newCmd().Execute(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var f flags

	v := viper.New()
	v.SetEnvPrefix("QUIZNET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quiznet",
		Short:         "LAN multiplayer quiz game server",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				slog.Info("shutting down", "signal", sig)
				cancel()
				// A second signal skips the graceful path.
				<-sigCh
				slog.Error("forced shutdown")
				os.Exit(1)
			}()

			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "quiznet.yaml", "path to YAML config (env: QUIZNET_CONFIG)")
	fs.IntVar(&f.tcpPort, "tcp", 5556, "TCP game port (env: QUIZNET_TCP)")
	fs.IntVar(&f.udpPort, "udp", 5555, "UDP discovery port (env: QUIZNET_UDP)")
	fs.StringVar(&f.name, "name", "QuizNet", "server display name (env: QUIZNET_NAME)")
	fs.StringVar(&f.questions, "questions", "", "question file path (env: QUIZNET_QUESTIONS)")
	fs.StringVar(&f.accounts, "accounts", "", "accounts file path (env: QUIZNET_ACCOUNTS)")
	fs.StringVar(&f.metrics, "metrics", "", "Prometheus listen address, empty disables (env: QUIZNET_METRICS)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (env: QUIZNET_LOG_LEVEL)")

	fs.VisitAll(func(fl *pflag.Flag) {
		_ = v.BindPFlag(fl.Name, fl)
		_ = v.BindEnv(fl.Name)
		if !fl.Changed && v.IsSet(fl.Name) {
			_ = fs.Set(fl.Name, fmt.Sprintf("%v", v.Get(fl.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("quiznet v{{.Version}}\n")

	return cmd
}

// buildConfig loads the YAML config and lays explicitly set flags on top.
func buildConfig(fs *pflag.FlagSet, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("tcp", func() { cfg.Server.Port = f.tcpPort })
	set("udp", func() { cfg.Discovery.Port = f.udpPort })
	set("name", func() { cfg.Server.Name = f.name })
	set("questions", func() { cfg.QuestionsFile = f.questions })
	set("accounts", func() { cfg.Accounts.File = f.accounts })
	set("metrics", func() { cfg.MetricsAddr = f.metrics })
	set("log-level", func() { cfg.LogLevel = f.logLevel })

	return cfg, nil
}

func run(ctx context.Context, cfg config.Config) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	slog.Info("quiznet server starting", "version", version, "name", cfg.Server.Name)

	bank, err := question.Load(cfg.QuestionsFile)
	if err != nil {
		return fmt.Errorf("loading question bank: %w", err)
	}

	accounts, closeStore, err := openAccounts(ctx, cfg.Accounts)
	if err != nil {
		return fmt.Errorf("opening account store: %w", err)
	}
	defer closeStore()

	registry := server.NewRegistry()
	games := game.NewManager(bank, registry, cfg.Game.LastPlayerPenalty)
	srv := server.NewServer(cfg.Server, accounts, games, bank, registry)
	disc := discovery.NewResponder(cfg.Discovery, cfg.Server.Name, cfg.Server.Port)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := disc.Run(gctx); err != nil {
			return fmt.Errorf("discovery responder: %w", err)
		}
		return nil
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			if err := serveMetrics(gctx, cfg.MetricsAddr); err != nil {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("quiznet server stopped")
	return nil
}

// openAccounts builds the configured credential store. The returned func
// releases the backing resources.
func openAccounts(ctx context.Context, cfg config.Accounts) (server.AccountStore, func(), error) {
	switch cfg.Backend {
	case "", "file":
		store, err := account.OpenFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("account store opened", "backend", "file", "path", cfg.File, "accounts", store.Count())
		return store, func() {}, nil

	case "postgres":
		dsn := cfg.Database.DSN()
		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx, dsn); err != nil {
			database.Close()
			return nil, nil, err
		}
		slog.Info("account store opened", "backend", "postgres", "host", cfg.Database.Host)
		return account.NewPostgres(database.Pool()), database.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown accounts backend %q", cfg.Backend)
	}
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics endpoint started", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
