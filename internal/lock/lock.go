// Package lock sends commands to bike locks over MQTT.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Command string

const (
	Unlock Command = "unlock"
	Lock   Command = "lock"
)

var ErrPublishTimeout = errors.New("timed out waiting for broker acknowledgement")

// Topic is the per-bike command topic the lock firmware subscribes to.
func Topic(bikeID string) string {
	return fmt.Sprintf("bike/%s/command", bikeID)
}

// publisher is the subset of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Commander struct {
	client  publisher
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

func NewCommander(client publisher, logger *slog.Logger) *Commander {
	return &Commander{
		client:  client,
		qos:     1,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Connect dials the broker. The returned client reconnects on its own.
func Connect(broker, clientID string, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", "broker", broker)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connect to %s: %w", broker, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return client, nil
}

// Send publishes cmd to the bike's command topic and waits for the broker
// to acknowledge it, or for ctx to end.
func (c *Commander) Send(ctx context.Context, bikeID string, cmd Command) error {
	topic := Topic(bikeID)
	token := c.client.Publish(topic, c.qos, false, []byte(cmd))

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		c.logger.ErrorContext(ctx, "lock command not acknowledged", "topic", topic, "command", cmd)
		return fmt.Errorf("publish %s to %s: %w", cmd, topic, ErrPublishTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish lock command", "topic", topic, "command", cmd, "error", err)
		return fmt.Errorf("publish %s to %s: %w", cmd, topic, err)
	}

	c.logger.InfoContext(ctx, "lock command published", "topic", topic, "command", cmd)
	return nil
}
