package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/winniio/dashboard/internal/config"
	"github.com/winniio/dashboard/internal/platform/sandbox"
	"github.com/winniio/dashboard/internal/platform/view"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "dashboard-server",
		Short:        "Ward dashboard API server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file with configuration")

	load := func() (*config.Config, zerolog.Logger, error) {
		cfg, err := config.LoadFile(envFile)
		if err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
		}
		return cfg, newLogger(cfg, os.Stdout), nil
	}

	root.AddCommand(serveCmd(load))
	root.AddCommand(checkCmd(load))
	root.AddCommand(migrateCmd(load))
	root.AddCommand(seedCmd(load))
	return root
}

type loader func() (*config.Config, zerolog.Logger, error)

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(cfg.Level()).With().Timestamp().Logger()
}

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the refresh loop and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return runServer(cfg, logger)
		},
	}
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	p := newPipeline(cfg, backend.store, logger)
	e := newServer(cfg, logger, p, backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.scheduler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info().Msg("server stopped")
	return err
}

func checkCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one refresh cycle and print the resulting panels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			backend, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			return runCheck(cmd.Context(), cmd.OutOrStdout(), newPipeline(cfg, backend.store, logger))
		},
	}
}

// runCheck executes a single cycle and writes a summary of every panel.
func runCheck(ctx context.Context, w io.Writer, p *pipeline) error {
	if err := p.scheduler.Step(ctx); err != nil {
		return fmt.Errorf("refresh cycle failed: %w", err)
	}
	snap := p.board.Snapshot()
	fmt.Fprintf(w, "cycle %d published at %s\n", snap.Cycle, snap.PublishedAt.UTC().Format(time.RFC3339))
	for _, panel := range snap.Panels {
		v, _ := snap.Query(panel.Name, view.SelectAll)
		fmt.Fprintf(w, "%s: %d records, %d mutated, %s options %v\n",
			v.Name, v.Total, v.Mutated, v.FilterField, v.Options)
		for _, warning := range v.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
	}
	return nil
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the record store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			// openStore ensures the schema for SQL drivers.
			backend, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			backend.Close()
			logger.Info().Str("driver", cfg.StoreDriver).Msg("store schema is up to date")
			return nil
		},
	}
}

func seedCmd(load loader) *cobra.Command {
	defaults := sandbox.DefaultSeedConfig()
	var (
		agents, patients int
		seed             uint64
		force            bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write demo agents and patient events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			backend, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			result, err := sandbox.NewSeeder(backend.store, logger).Seed(cmd.Context(), sandbox.SeedConfig{
				AgentCount:     agents,
				PatientCount:   patients,
				AgentsSource:   cfg.AgentsSource,
				PatientsSource: cfg.PatientsSource,
				Force:          force,
				Seed:           seed,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d agents, %d patients", result.Agents, result.Patients)
			if len(result.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (skipped existing %v; use --force to overwrite)", result.Skipped)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVar(&agents, "agents", defaults.AgentCount, "number of agents to generate")
	cmd.Flags().IntVar(&patients, "patients", defaults.PatientCount, "number of patient events to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing sources")
	return cmd
}
