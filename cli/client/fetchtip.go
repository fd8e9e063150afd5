// Package client implements the "fetch-tip" command: connect to a
// single Ouroboros node-to-node relay, negotiate a session, and print
// its chain tip and any peers discovered, as JSON on stdout.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntnconfig"
	"github.com/ouroboros-ntn/ntnclient/pkg/orchestrator"
	"github.com/urfave/cli/v2"
)

// NewCommands returns the "fetch-tip" command.
func NewCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "fetch-tip",
			Usage:     "Connect to a relay, negotiate a session and print its chain tip",
			UsageText: "ntn-client fetch-tip --host HOST [--port PORT] [--magic MAGIC] [--peer-sharing]",
			Action:    fetchTip,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "host",
					Usage:    "Relay hostname or IP address",
					Required: true,
				},
				&cli.UintFlag{
					Name:  "port",
					Usage: "Relay node-to-node port",
					Value: uint(ntn.DefaultNtNPort),
				},
				&cli.UintFlag{
					Name:  "magic",
					Usage: "Network magic to propose during the handshake",
					Value: uint(ntn.MainnetMagic),
				},
				&cli.BoolFlag{
					Name:  "peer-sharing",
					Usage: "Also request peer addresses via the PeerSharing mini-protocol",
				},
				&cli.UintFlag{
					Name:  "session-timeout-ms",
					Usage: "Overall session deadline in milliseconds",
					Value: 15000,
				},
				&cli.UintFlag{
					Name:  "connect-timeout-ms",
					Usage: "TCP connect timeout in milliseconds",
					Value: 5000,
				},
				&cli.UintFlag{
					Name:  "protocol-timeout-ms",
					Usage: "Per mini-protocol reply timeout in milliseconds",
					Value: 12000,
				},
				&cli.StringFlag{
					Name:  "config",
					Usage: "Optional YAML config file; flags override its values",
				},
				&cli.StringFlag{
					Name:  "log-level",
					Usage: "Log level (debug, info, warn, error)",
					Value: "info",
				},
				&cli.StringFlag{
					Name:  "log-encoding",
					Usage: "Log encoding (console, json)",
					Value: "console",
				},
			},
		},
	}
}

func fetchTip(c *cli.Context) error {
	cfg, err := ntnconfig.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	cfg.Host = c.String("host")
	if c.IsSet("port") {
		cfg.Port = uint16(c.Uint("port"))
	}
	if c.IsSet("magic") {
		cfg.NetworkMagic = uint32(c.Uint("magic"))
	}
	if c.IsSet("peer-sharing") {
		cfg.WantPeerSharing = c.Bool("peer-sharing")
	}
	if c.IsSet("session-timeout-ms") {
		cfg.SessionTimeout = time.Duration(c.Uint("session-timeout-ms")) * time.Millisecond
	}
	if c.IsSet("connect-timeout-ms") {
		cfg.ConnectTimeout = time.Duration(c.Uint("connect-timeout-ms")) * time.Millisecond
	}
	if c.IsSet("protocol-timeout-ms") {
		cfg.ProtocolTimeout = time.Duration(c.Uint("protocol-timeout-ms")) * time.Millisecond
	}
	if c.IsSet("log-level") {
		cfg.Logger.Level = c.String("log-level")
	}
	if c.IsSet("log-encoding") {
		cfg.Logger.Encoding = c.String("log-encoding")
	}

	if err := cfg.Logger.Validate(); err != nil {
		return cli.Exit(err, 1)
	}
	logger, err := cfg.Logger.BuildLogger()
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to build logger: %w", err), 1)
	}
	defer func() { _ = logger.Sync() }()

	result, err := orchestrator.Fetch(cfg, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}
