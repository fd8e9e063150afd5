// Package ntnconfig holds the client's runtime configuration: the
// relay endpoint, network magic, timeouts and peer-sharing toggle from
// spec.md §6, loadable from an optional YAML file the way neo-go loads
// its protocol configuration (pkg/config/config.go), with CLI flags
// taking precedence over file values.
package ntnconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"gopkg.in/yaml.v3"
)

// Logger mirrors neo-go's pkg/config.Logger: encoding and level for
// the zap logger built from it.
type Logger struct {
	Encoding string `yaml:"Encoding"`
	Level    string `yaml:"Level"`
}

func (l Logger) Validate() error {
	if l.Encoding != "" && l.Encoding != "console" && l.Encoding != "json" {
		return fmt.Errorf("invalid log encoding: %s", l.Encoding)
	}
	return nil
}

// Config is the full set of client options.
type Config struct {
	Host              string        `yaml:"Host"`
	Port              uint16        `yaml:"Port"`
	NetworkMagic      uint32        `yaml:"NetworkMagic"`
	WantPeerSharing   bool          `yaml:"WantPeerSharing"`
	PeerSharingAmount uint8         `yaml:"PeerSharingAmount"`
	PeerCap           int           `yaml:"PeerCap"`
	SessionTimeout    time.Duration `yaml:"SessionTimeout"`
	ConnectTimeout    time.Duration `yaml:"ConnectTimeout"`
	ProtocolTimeout   time.Duration `yaml:"ProtocolTimeout"`
	Logger            Logger        `yaml:"Logger"`
}

// Default returns the spec.md §6 defaults: mainnet relay host left
// blank for the caller to fill in (there is no single canonical
// mainnet relay hostname), port 3001, mainnet magic, a 15s session
// timeout and 12s per-protocol timeout.
func Default() Config {
	return Config{
		Port:              ntn.DefaultNtNPort,
		NetworkMagic:      ntn.MainnetMagic,
		WantPeerSharing:   false,
		PeerSharingAmount: 16,
		PeerCap:           25,
		SessionTimeout:    15 * time.Second,
		ConnectTimeout:    5 * time.Second,
		ProtocolTimeout:   12 * time.Second,
		Logger:            Logger{Encoding: "console", Level: "info"},
	}
}

// Load reads and merges a YAML config file over Default(). A missing
// path is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Logger.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Endpoint projects the relay target as an ntn.Endpoint.
func (c Config) Endpoint() ntn.Endpoint {
	return ntn.Endpoint{Host: c.Host, Port: c.Port}
}
