package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"irriflow.dev/dashboard/internal/producer"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/mq"
	"irriflow.dev/dashboard/pkg/water"
)

var generatorCmd = &cobra.Command{
	Use:   "generator",
	Short: "Run the data generator",
	Long: `Run the data generator that:
- Seeds the energy and water services with pumps and reservoirs
- Posts synthetic consumption and flow measurements
- Optionally publishes raised alerts to RabbitMQ
- Supports multiple concurrent producers`,
	RunE: runGenerator,
}

func init() {
	rootCmd.AddCommand(generatorCmd)

	// Generator-specific flags
	generatorCmd.Flags().String("energy-url", defaultEnergyURL, "Energy service API base URL")
	generatorCmd.Flags().String("water-url", defaultWaterURL, "Water service API base URL")
	generatorCmd.Flags().String("alerts-amqp-url", "", "RabbitMQ URL alert events are published to (empty disables)")
	generatorCmd.Flags().Int("producer-count", 1, "Number of concurrent producers")
	generatorCmd.Flags().Duration("interval", 5*time.Second, "Interval between data generation")

	// Bind flags to viper
	_ = viper.BindPFlag("generator.energy.url", generatorCmd.Flags().Lookup("energy-url"))
	_ = viper.BindPFlag("generator.water.url", generatorCmd.Flags().Lookup("water-url"))
	_ = viper.BindPFlag("generator.alerts.amqp_url", generatorCmd.Flags().Lookup("alerts-amqp-url"))
	_ = viper.BindPFlag("generator.producer_count", generatorCmd.Flags().Lookup("producer-count"))
	_ = viper.BindPFlag("generator.interval", generatorCmd.Flags().Lookup("interval"))
}

func runGenerator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting generator service")

	clientMetrics := metrics.NewClientMetrics(nil, metrics.Namespace)
	energyClient, err := energy.NewClient(viper.GetString("generator.energy.url"), clientOptions("generator", clientMetrics)...)
	if err != nil {
		logger.Error("failed to create energy client", "error", err)
		return err
	}
	waterClient, err := water.NewClient(viper.GetString("generator.water.url"), clientOptions("generator", clientMetrics)...)
	if err != nil {
		logger.Error("failed to create water client", "error", err)
		return err
	}

	config := &producer.ServerConfig{
		Logger:         logger,
		Energy:         energyClient,
		Water:          waterClient,
		ProducerCount:  viper.GetInt("generator.producer_count"),
		Interval:       viper.GetDuration("generator.interval"),
		SeedPumps:      viper.GetInt("generator.seed.pumps"),
		SeedReservoirs: viper.GetInt("generator.seed.reservoirs"),
		Seed:           viper.GetUint64("generator.seed.random"),
		Metrics:        metrics.NewProducerMetrics(nil, metrics.Namespace),
	}

	if url := viper.GetString("generator.alerts.amqp_url"); url != "" {
		client, err := mq.New(mq.Config{
			URL:      url,
			Exchange: viper.GetString("generator.alerts.exchange"),
			Logger:   logger.With(slog.String("component", "mq-client")),
			Metrics:  metrics.NewMQMetrics(nil, metrics.Namespace),
		})
		if err != nil {
			logger.Error("failed to create MQ client", "error", err)
			return err
		}
		config.Publisher = client
	}

	server, err := producer.NewServer(config)
	if err != nil {
		logger.Error("failed to create generator server", "error", err)
		return err
	}

	logger.Info("generator server configuration",
		"energy_url", viper.GetString("generator.energy.url"),
		"water_url", viper.GetString("generator.water.url"),
		"producer_count", config.ProducerCount,
		"interval", config.Interval,
		"alert_relay", config.Publisher != nil,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("generator server error", "error", err)
		return err
	}

	logger.Info("generator server stopped")
	return nil
}
