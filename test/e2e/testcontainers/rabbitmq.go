// Package testcontainers starts the broker containers the e2e suites run against.
package testcontainers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	rabbitmqImage = "rabbitmq:3.13-alpine"
	amqpPort      = "5672/tcp"
)

// RabbitMQConfig holds configuration for RabbitMQ test container.
type RabbitMQConfig struct {
	// User is the RabbitMQ username (default: guest)
	User string
	// Password is the RabbitMQ password (default: guest)
	Password string
	// ContainerName is the name of the container (optional)
	ContainerName string
}

// Broker is a running RabbitMQ container.
type Broker struct {
	Container testcontainers.Container
	// URL is the AMQP connection string of the default vhost.
	URL string
}

// StartRabbitMQ starts a RabbitMQ container and waits until it accepts AMQP
// connections.
func StartRabbitMQ(ctx context.Context, config *RabbitMQConfig) (*Broker, error) {
	cfg := RabbitMQConfig{User: "guest", Password: "guest"}
	if config != nil {
		cfg.ContainerName = config.ContainerName
		if config.User != "" {
			cfg.User = config.User
		}
		if config.Password != "" {
			cfg.Password = config.Password
		}
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        rabbitmqImage,
			ExposedPorts: []string{amqpPort},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(amqpPort),
				wait.ForLog("Server startup complete"),
			),
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": cfg.User,
				"RABBITMQ_DEFAULT_PASS": cfg.Password,
			},
			Name: cfg.ContainerName,
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, amqpPort, "")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to resolve AMQP endpoint: %w", err)
	}

	u := url.URL{Scheme: "amqp", User: url.UserPassword(cfg.User, cfg.Password), Host: endpoint, Path: "/"}
	return &Broker{Container: container, URL: u.String()}, nil
}

// ID returns the container ID.
func (b *Broker) ID() string {
	return b.Container.GetContainerID()
}

// Stop terminates the container. It is safe on a nil Broker.
func (b *Broker) Stop(ctx context.Context) error {
	if b == nil || b.Container == nil {
		return nil
	}
	return b.Container.Terminate(ctx)
}
