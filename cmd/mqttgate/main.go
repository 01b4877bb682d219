// mqttgate - HTTP to MQTT publish gateway
//
// mqttgate accepts GET /send/{topic}/{message} and publishes the message to
// the configured broker (MQTT, or NATS as an alternative backend). Optional
// sidecars record every attempt to SQLite, export Prometheus metrics, write
// InfluxDB telemetry and relay broker traffic to WebSocket clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nerrad567/mqttgate/internal/api"
	"github.com/nerrad567/mqttgate/internal/infrastructure/config"
	"github.com/nerrad567/mqttgate/internal/infrastructure/logging"
	"github.com/nerrad567/mqttgate/internal/publisher"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the config path.
const configEnvVar = "MQTTGATE_CONFIG"

func main() {
	// Cancel on Ctrl+C / SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Output goes to stdout/stderr so tests can
// capture it.
func newApp(stdout, stderr io.Writer) *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the YAML configuration file",
		Value:   defaultConfigPath,
		EnvVars: []string{configEnvVar},
	}

	return &cli.App{
		Name:      "mqttgate",
		Usage:     "publish HTTP requests to an MQTT broker",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP gateway",
				Action: func(c *cli.Context) error {
					return run(c.Context, c.String("config"))
				},
			},
			{
				Name:  "publish",
				Usage: "publish one message through the gateway and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "topic", Aliases: []string{"t"}, Required: true, Usage: "topic to publish to"},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true, Usage: "message payload"},
				},
				Action: func(c *cli.Context) error {
					return publishOnce(c.Context, c.String("config"), c.String("topic"), c.String("message"), c.App.Writer)
				},
			},
			{
				Name:  "token",
				Usage: "mint a bearer token signed with security.jwt.secret",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "mqttgate", Usage: "token subject"},
					&cli.DurationFlag{Name: "ttl", Value: 15 * time.Minute, Usage: "token lifetime"},
				},
				Action: func(c *cli.Context) error {
					return mintToken(c.String("config"), c.String("subject"), c.Duration("ttl"), c.App.Writer)
				},
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintf(c.App.Writer, "mqttgate %s (commit %s, built %s)\n", version, commit, date)
					return err
				},
			},
		},
	}
}

// loadConfig reads the configuration and builds the configured logger.
func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, logging.New(cfg.Logging, version), nil
}

// publishOnce connects, publishes a single message and disconnects.
// It fails with a non-zero exit when the publish is not confirmed.
func publishOnce(ctx context.Context, configPath, topic, message string, out io.Writer) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	b, err := connectBackend(cfg, log)
	if err != nil {
		return err
	}

	gw, err := publisher.New(publisher.Deps{
		Transport: b.transport,
		Backend:   cfg.Broker.Type,
		Timeout:   cfg.GetPublishTimeout(),
	})
	if err != nil {
		_ = b.transport.Close()
		return err
	}
	defer func() {
		if closeErr := gw.Close(); closeErr != nil {
			log.Error("error closing broker connection", "error", closeErr)
		}
	}()

	if err := gw.Publish(ctx, topic, []byte(message)); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	_, err = fmt.Fprintf(out, "send message : %s\n", message)
	return err
}

// mintToken prints a signed bearer token for the configured secret.
func mintToken(configPath, subject string, ttl time.Duration, out io.Writer) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set; authentication is disabled")
	}

	token, err := api.GenerateToken(cfg.Security.JWT.Secret, subject, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
