package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"irriflow.dev/dashboard/internal/alertfeed"
	"irriflow.dev/dashboard/internal/frontend"
	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/mq"
	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

var frontendCmd = &cobra.Command{
	Use:   "frontend",
	Short: "Run the dashboard server",
	Long: `Run the dashboard web server that:
- Serves the dashboard, energy, water and alerts views
- Talks to the energy and water REST services
- Pushes live view updates over websockets
- Optionally refreshes alert views on RabbitMQ alert events`,
	RunE: runFrontend,
}

func init() {
	rootCmd.AddCommand(frontendCmd)

	// Frontend-specific flags
	frontendCmd.Flags().Int("http-port", 8080, "HTTP server port")
	frontendCmd.Flags().String("energy-url", defaultEnergyURL, "Energy service API base URL")
	frontendCmd.Flags().String("water-url", defaultWaterURL, "Water service API base URL")
	frontendCmd.Flags().String("alerts-amqp-url", "", "RabbitMQ URL for alert events (empty disables)")

	// Bind flags to viper
	_ = viper.BindPFlag("frontend.http.port", frontendCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("frontend.energy.url", frontendCmd.Flags().Lookup("energy-url"))
	_ = viper.BindPFlag("frontend.water.url", frontendCmd.Flags().Lookup("water-url"))
	_ = viper.BindPFlag("frontend.alerts.amqp_url", frontendCmd.Flags().Lookup("alerts-amqp-url"))
}

func runFrontend(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting frontend service")

	config, err := frontendConfig(logger)
	if err != nil {
		logger.Error("invalid frontend configuration", "error", err)
		return err
	}

	server, err := frontend.NewServer(config)
	if err != nil {
		logger.Error("failed to create frontend server", "error", err)
		return err
	}

	logger.Info("frontend server configuration",
		"http_port", config.HTTPPort,
		"energy_url", viper.GetString("frontend.energy.url"),
		"water_url", viper.GetString("frontend.water.url"),
		"fetch_policy", config.FailurePolicy.String(),
		"overlap_policy", config.OverlapPolicy.String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := startAlertFeed(ctx, logger, server)
	if err != nil {
		logger.Error("failed to start alert feed", "error", err)
		return err
	}
	if consumer != nil {
		defer func() {
			if err := consumer.Stop(); err != nil {
				logger.Error("failed to stop alert feed", "error", err)
			}
		}()
	}

	if err := server.Run(ctx); err != nil {
		logger.Error("frontend server error", "error", err)
		return err
	}

	logger.Info("frontend server stopped")
	return nil
}

func frontendConfig(logger *slog.Logger) (*frontend.ServerConfig, error) {
	clientMetrics := metrics.NewClientMetrics(nil, metrics.Namespace)

	energyClient, err := energy.NewClient(viper.GetString("frontend.energy.url"), clientOptions("frontend", clientMetrics)...)
	if err != nil {
		return nil, fmt.Errorf("energy client: %w", err)
	}
	waterClient, err := water.NewClient(viper.GetString("frontend.water.url"), clientOptions("frontend", clientMetrics)...)
	if err != nil {
		return nil, fmt.Errorf("water client: %w", err)
	}

	failure, err := poll.ParseFailurePolicy(viper.GetString("frontend.fetch.policy"))
	if err != nil {
		return nil, err
	}
	overlap, err := poll.ParseOverlapPolicy(viper.GetString("frontend.refresh.overlap"))
	if err != nil {
		return nil, err
	}
	loc, err := displayLocation(viper.GetString("frontend.display.timezone"))
	if err != nil {
		return nil, err
	}
	rest.SetLocalZone(loc)

	config := &frontend.ServerConfig{
		Logger:            logger,
		HTTPPort:          viper.GetInt("frontend.http.port"),
		Energy:            energyClient,
		Water:             waterClient,
		DashboardInterval: viper.GetDuration("frontend.refresh.dashboard"),
		AlertsInterval:    viper.GetDuration("frontend.refresh.alerts"),
		FailurePolicy:     failure,
		OverlapPolicy:     overlap,
		StatusTTL:         viper.GetDuration("frontend.status.ttl"),
		SessionIdle:       viper.GetDuration("frontend.session.idle"),
		LiveGrace:         viper.GetDuration("frontend.live.grace"),
		SecureCookies:     viper.GetBool("frontend.session.secure"),
		Location:          loc,
		EnergyProxy:       viper.GetString("frontend.proxy.energy"),
		WaterProxy:        viper.GetString("frontend.proxy.water"),
		NoProxy:           !viper.GetBool("frontend.proxy.enabled"),
		ProxyCORSOrigins:  viper.GetStringSlice("frontend.proxy.cors_origins"),
	}

	if viper.GetBool("frontend.metrics.enabled") {
		config.Metrics = metrics.NewFrontendMetrics(nil, metrics.Namespace)
		config.PollMetrics = metrics.NewPollMetrics(nil, metrics.Namespace)
		config.MetricsHandler = metrics.Handler()
	}

	return config, nil
}

// startAlertFeed subscribes the server to alert events when an AMQP URL is
// configured. It returns nil when the feed is disabled.
func startAlertFeed(ctx context.Context, logger *slog.Logger, server *frontend.Server) (*alertfeed.Consumer, error) {
	url := viper.GetString("frontend.alerts.amqp_url")
	if url == "" {
		logger.Info("alert feed disabled, relying on polling")
		return nil, nil
	}

	exchange := viper.GetString("frontend.alerts.exchange")
	mqMetrics := metrics.NewMQMetrics(nil, metrics.Namespace)
	client, err := mq.New(mq.Config{
		URL:      url,
		Exchange: exchange,
		Logger:   logger.With(slog.String("component", "mq-client")),
		Metrics:  mqMetrics,
	})
	if err != nil {
		return nil, err
	}

	consumer, err := alertfeed.NewConsumer(&alertfeed.ConsumerConfig{
		Logger:   logger,
		Client:   client,
		Notifier: alertfeed.RefreshViews(server, "dashboard", "alerts"),
		Exchange: exchange,
		Metrics:  mqMetrics,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	if err := consumer.Start(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("alert feed started", "exchange", exchange)
	return consumer, nil
}
