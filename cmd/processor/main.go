package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/abkawan/toybank-ledger/internal/cli"
	"github.com/abkawan/toybank-ledger/internal/config"
	"github.com/abkawan/toybank-ledger/internal/db"
	"github.com/abkawan/toybank-ledger/internal/logger"
	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/abkawan/toybank-ledger/internal/queue"
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
		Use:   "ledger-processor",
		Short: "Archives committed ledger transactions",
		Long: `Consumes the transaction events the API publishes to RabbitMQ and
archives them in MongoDB. Archiving is idempotent, so redelivered events
are safe.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(configPath, cmd.Flags(), map[string]string{
				"log.level":    "log-level",
				"mongo.uri":    "mongo",
				"rabbitmq.uri": "rabbitmq",
			})
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cli.AddConfigFlag(cmd, &configPath)
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("mongo", "", "MongoDB URI of the transaction archive")
	cmd.Flags().String("rabbitmq", "", "RabbitMQ URI for transaction events")

	cmd.AddCommand(cli.NewVersionCommand("ledger-processor"))
	return cmd
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := cli.NewLogger(cfg.Log)
	if cfg.Mongo.URI == "" || cfg.RabbitMQ.URI == "" {
		err := errors.New("processor needs mongo.uri and rabbitmq.uri")
		log.Error().Err(err).Msg("Missing configuration")
		return err
	}

	// Connect to MongoDB
	log.Info().Msg("Connecting to MongoDB...")
	mongodb, err := db.NewMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to MongoDB")
		return err
	}
	defer mongodb.Close(context.Background())

	// Connect to RabbitMQ
	log.Info().Msg("Connecting to RabbitMQ...")
	rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Queue, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to RabbitMQ")
		return err
	}
	defer rabbitmq.Close()

	archive := func(ctx context.Context, event *models.TransactionEvent) error {
		eventLog := logger.WithFields(log, map[string]interface{}{
			"transaction": event.ID,
			"kind":        event.Kind,
		})
		if err := mongodb.ArchiveTransaction(ctx, event); err != nil {
			return err
		}
		eventLog.Debug().Int64("amount", event.Amount).Msg("Archived transaction")
		return nil
	}

	// Start transaction processor
	done := make(chan error, 1)
	go func() {
		log.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("Starting transaction processor...")
		done <- rabbitmq.ConsumeTransactions(ctx, archive)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Info().Msg("Shutting down processor...")
		cancel() // Cancel context to stop processor
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("Transaction processor stopped")
			return err
		}
		log.Warn().Msg("Delivery channel closed")
	}

	log.Info().Msg("Processor shut down successfully")
	return nil
}
