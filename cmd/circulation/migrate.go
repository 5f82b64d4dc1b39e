package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"

	"libraflow/internal/notify"
	"libraflow/internal/platform/config"
	"libraflow/internal/platform/database"
)

var (
	topicPartitions  int32
	topicReplication int16
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and create the notification topic",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().Int32Var(&topicPartitions, "partitions", 3, "notification topic partitions")
	migrateCmd.Flags().Int16Var(&topicReplication, "replication", 1, "notification topic replication factor")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database.URL, 1)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		fmt.Fprintln(out, "schema applied")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := notify.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("kafka client: %w", err)
		}
		defer client.Close()

		resp, err := kadm.NewClient(client).CreateTopic(ctx, topicPartitions, topicReplication, nil, cfg.Kafka.Topic)
		if err == nil {
			err = resp.Err
		}
		if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", cfg.Kafka.Topic, err)
		}
		fmt.Fprintf(out, "topic %s ready\n", cfg.Kafka.Topic)
	}
	return nil
}
