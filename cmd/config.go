package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"irriflow.dev/dashboard/pkg/logger"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/rest"
)

// Default service locations, matching the ports the backends listen on in
// local development.
const (
	defaultEnergyURL = "http://localhost:8081/energy-service/api"
	defaultWaterURL  = "http://localhost:8082/water-service/api"
)

// InitConfig initializes Viper configuration.
// It reads a .env file when present, then config files (config.yaml) and
// environment variables prefixed with IRRIFLOW_.
func InitConfig(cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env file: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/irriflow/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("IRRIFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFoundErr) {
			// Config file not found; rely on env vars and defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("frontend.energy.url", defaultEnergyURL)
	viper.SetDefault("frontend.water.url", defaultWaterURL)
	viper.SetDefault("frontend.client.timeout", time.Duration(0))
	viper.SetDefault("frontend.refresh.dashboard", 30*time.Second)
	viper.SetDefault("frontend.refresh.alerts", 10*time.Second)
	viper.SetDefault("frontend.refresh.overlap", "coalesce")
	viper.SetDefault("frontend.fetch.policy", "degrade")
	viper.SetDefault("frontend.status.ttl", 3*time.Second)
	viper.SetDefault("frontend.session.idle", 30*time.Minute)
	viper.SetDefault("frontend.session.secure", false)
	viper.SetDefault("frontend.live.grace", 10*time.Second)
	viper.SetDefault("frontend.display.timezone", "Local")
	viper.SetDefault("frontend.proxy.enabled", true)
	viper.SetDefault("frontend.proxy.energy", "")
	viper.SetDefault("frontend.proxy.water", "")
	viper.SetDefault("frontend.proxy.cors_origins", []string{})
	viper.SetDefault("frontend.alerts.amqp_url", "")
	viper.SetDefault("frontend.alerts.exchange", "irrigation.alerts")
	viper.SetDefault("frontend.metrics.enabled", true)

	viper.SetDefault("generator.energy.url", defaultEnergyURL)
	viper.SetDefault("generator.water.url", defaultWaterURL)
	viper.SetDefault("generator.interval", 5*time.Second)
	viper.SetDefault("generator.producer_count", 1)
	viper.SetDefault("generator.seed.pumps", 3)
	viper.SetDefault("generator.seed.reservoirs", 2)
	viper.SetDefault("generator.seed.random", 0)
	viper.SetDefault("generator.alerts.amqp_url", "")
	viper.SetDefault("generator.alerts.exchange", "irrigation.alerts")
}

// GetLogger creates a slog.Logger based on configuration.
func GetLogger() *slog.Logger {
	return logger.New(&logger.Config{
		Output: os.Stdout,
		Level:  logger.ParseLevel(viper.GetString("log.level")),
		Format: logger.ParseFormat(viper.GetString("log.format")),
	})
}

// clientOptions are the REST client options read from prefix.
func clientOptions(prefix string, m *metrics.ClientMetrics) []rest.Option {
	opts := []rest.Option{rest.WithMetrics(m)}
	if timeout := viper.GetDuration(prefix + ".client.timeout"); timeout > 0 {
		opts = append(opts, rest.WithTimeout(timeout))
	}
	return opts
}

// displayLocation resolves the configured display timezone.
func displayLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", name, err)
	}
	return loc, nil
}
