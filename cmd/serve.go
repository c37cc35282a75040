package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go-sniper/aggregator"
	"go-sniper/builder"
	"go-sniper/config"
	"go-sniper/database"
	"go-sniper/logging"
	"go-sniper/plugin"
	"go-sniper/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the panel HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg *config.Config) error {
	logFile, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logFile.Close()

	// Initiate database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("couldn't create database: %w", err)
	}
	defer db.Close()

	store := aggregator.New(aggregator.WithRepository(db))
	workspaces, results, err := db.Load()
	if err != nil {
		return fmt.Errorf("couldn't load results: %w", err)
	}
	if err := store.Restore(workspaces, results); err != nil {
		return err
	}

	pm := plugin.NewManager(plugin.DryRun{})
	if pm.Get(cfg.Scanner.Plugin) == nil {
		return fmt.Errorf("%w: %s", plugin.ErrUnknownPlugin, cfg.Scanner.Plugin)
	}

	srv := server.New(server.Options{
		Store:        store,
		Builder:      builder.New(cfg.Scanner.Tool),
		Plugins:      pm,
		DB:           db,
		Plugin:       cfg.Scanner.Plugin,
		AllowOrigins: cfg.Server.AllowOrigins,
	})

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
