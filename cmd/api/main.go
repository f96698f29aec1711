package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/abkawan/toybank-ledger/internal/api"
	"github.com/abkawan/toybank-ledger/internal/cli"
	"github.com/abkawan/toybank-ledger/internal/config"
	"github.com/abkawan/toybank-ledger/internal/db"
	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/abkawan/toybank-ledger/internal/queue"
	"github.com/abkawan/toybank-ledger/internal/service"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ledger-api",
		Short: "HTTP API for the toy banking ledger",
		Long: `Serves the admin and client operations of the ledger over HTTP.

The ledger lives in memory. When configured, banks, clients, accounts and
committed transactions are journaled to PostgreSQL or MySQL, committed
transactions are published to RabbitMQ and the MongoDB archive is served
under /client/accounts/{id}/archive.

Every setting can be given in a config file or as a LEDGER_* environment
variable, e.g. LEDGER_DATABASE_DRIVER=postgres.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(configPath, cmd.Flags(), map[string]string{
				"http.port":       "port",
				"log.level":       "log-level",
				"database.driver": "db-driver",
				"database.dsn":    "db",
				"mongo.uri":       "mongo",
				"rabbitmq.uri":    "rabbitmq",
				"seed.bank_name":  "seed-bank",
			})
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cli.AddConfigFlag(cmd, &configPath)
	cmd.Flags().String("port", "8080", "HTTP server port")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("db-driver", "", "journal database driver (postgres or mysql); empty disables the journal")
	cmd.Flags().String("db", "", "journal database connection string")
	cmd.Flags().String("mongo", "", "MongoDB URI of the transaction archive")
	cmd.Flags().String("rabbitmq", "", "RabbitMQ URI for transaction events")
	cmd.Flags().String("seed-bank", "", "name of a bank created at startup")

	cmd.AddCommand(cli.NewVersionCommand("ledger-api"))
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	log := cli.NewLogger(cfg.Log)
	opts := []service.Option{service.WithLogger(log)}

	if cfg.Database.Driver != "" {
		log.Info().Str("driver", cfg.Database.Driver).Msg("Connecting to journal database...")
		store, err := db.NewSQLStore(cfg.Database)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to journal database")
			return err
		}
		defer store.Close()

		log.Info().Msg("Creating the schema...")
		if err := store.InitSchema(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to create schema")
			return err
		}
		opts = append(opts, service.WithStore(store))
	}

	var archive api.Archive
	if cfg.Mongo.URI != "" {
		log.Info().Msg("Connecting to MongoDB...")
		mongodb, err := db.NewMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to MongoDB")
			return err
		}
		defer mongodb.Close(context.Background())
		archive = mongodb
	}

	if cfg.RabbitMQ.URI != "" {
		log.Info().Msg("Connecting to RabbitMQ...")
		rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Queue, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to RabbitMQ")
			return err
		}
		defer rabbitmq.Close()
		opts = append(opts, service.WithPublisher(rabbitmq))
	}

	ledger := service.NewLedger(opts...)
	if err := seed(ctx, ledger, cfg.Seed, log); err != nil {
		return err
	}

	// Create router and set up routes
	router := mux.NewRouter()
	api.SetupRoutes(router, ledger, archive, log)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("Failed to start server")
		return err
	}

	log.Info().Msg("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server shut down successfully")
	return nil
}

// seed creates the configured bank so a fresh server can accept clients at once
func seed(ctx context.Context, ledger *service.Ledger, cfg config.SeedConfig, log zerolog.Logger) error {
	if cfg.BankName == "" {
		return nil
	}
	limit := cfg.UnauthorizedWithdrawalLimit
	if _, err := ledger.CreateBank(ctx, &models.CreateBankRequest{Name: cfg.BankName, UnauthorizedWithdrawalLimit: &limit}); err != nil {
		log.Error().Err(err).Str("bank", cfg.BankName).Msg("Failed to seed bank")
		return err
	}
	return nil
}
