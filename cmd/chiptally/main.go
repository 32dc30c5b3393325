package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"chiptally/internal/config"
	"chiptally/internal/server"
	"chiptally/internal/store"
)

var CLI struct {
	Config   string           `short:"c" long:"config" default:"chiptally.hcl" help:"Path to HCL configuration file"`
	Addr     string           `short:"a" long:"addr" help:"Address to bind to (overrides config)"`
	LogLevel string           `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Storage  string           `short:"s" long:"storage" help:"Snapshot backend: memory, file or postgres (overrides config)"`
	Version  kong.VersionFlag `short:"v" long:"version" help:"Print version and exit"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{"version": "chiptally dev"})

	// DATABASE_URL and friends may live in a local .env during development.
	_ = godotenv.Load()

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Storage != "" {
		cfg.Storage.Driver = CLI.Storage
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	addr := cfg.ListenAddr()
	if CLI.Addr != "" {
		addr = CLI.Addr
	}

	if err := run(addr, cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		ctx.Exit(1)
	}
}

func run(addr string, cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(logger, st, cfg.DefaultGameSettings())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx, addr)
	})

	err = g.Wait()
	if closer, ok := st.(interface{ Close() }); ok {
		closer.Close()
	}
	return err
}

func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Info("using in-memory snapshot store")
		return store.NewMemoryStore(), nil
	case "file":
		logger.Info("using file snapshot store", "path", cfg.Storage.Path)
		return store.NewFileStore(cfg.Storage.Path)
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		pg, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		logger.Info("using postgres snapshot store")
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
