package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/conorfennell/geolingo/internal/config"
	"github.com/conorfennell/geolingo/internal/deck"
	"github.com/conorfennell/geolingo/internal/gitsource"
	"github.com/conorfennell/geolingo/internal/logger"
	"github.com/conorfennell/geolingo/internal/review"
	"github.com/conorfennell/geolingo/internal/storage"
	"github.com/conorfennell/geolingo/internal/storage/postgres"
	"github.com/conorfennell/geolingo/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("geolingo", pflag.ExitOnError)
	config.RegisterFlags(flags)
	serve := flags.Bool("serve", false, "Run the HTTP API (default when no other action is given)")
	syncDecks := flags.Bool("sync", false, "Sync all deck sources and exit")
	addSource := flags.String("add-source", "", "Register a deck directory or git URL")
	stats := flags.Bool("stats", false, "Print study statistics and exit")
	export := flags.String("export", "", "Write all cards as YAML to this file (- for stdout)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	git := &gitsource.Syncer{BaseDir: cfg.ReposDir(), Log: log}
	importer := deck.NewImporter(store, git, log)
	reviews := review.NewService(store, log)

	ran := false
	if *addSource != "" {
		ran = true
		src, err := importer.AddSource(ctx, *addSource)
		if err != nil {
			log.Fatal("failed to add source", zap.String("path", *addSource), zap.Error(err))
		}
		fmt.Printf("Added %s source %d: %s\n", src.Type, src.ID, src.Path)
	}

	if *syncDecks {
		ran = true
		results, err := importer.SyncAll(ctx)
		if err != nil {
			log.Fatal("sync failed", zap.Error(err))
		}
		for _, res := range results {
			fmt.Printf("%s: %d parsed, %d inserted, %d deleted, %d errors\n",
				res.Source.Path, res.Parsed, res.Inserted, res.Deleted, len(res.Errors))
			for _, e := range res.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
	}

	if *stats {
		ran = true
		st, err := reviews.Stats(ctx)
		if err != nil {
			log.Fatal("failed to compute stats", zap.Error(err))
		}
		fmt.Printf("Total: %d\nDue: %d\nNew: %d\nLearned: %d\n", st.Total, st.Due, st.New, st.Learned)
	}

	if *export != "" {
		ran = true
		if err := runExport(ctx, store, *export); err != nil {
			log.Fatal("export failed", zap.String("path", *export), zap.Error(err))
		}
	}

	if *serve || !ran {
		srv := web.NewServer(reviews, importer, store, log)
		if err := runServer(ctx, cfg.HTTP.Addr, srv, log); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresURL, postgres.PoolConfig{
			MaxConns:        cfg.Storage.MaxConns,
			MaxConnLifetime: cfg.Storage.MaxConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		store, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return storage.Open(ctx, cfg.Storage.SQLitePath)
}

func runExport(ctx context.Context, store storage.Store, path string) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return deck.Export(ctx, store, w)
}

func runServer(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
