package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type RelayConfig struct {
	Relay   Relay
	Version Version
}

type Relay struct {
	Debug      bool
	Server     Server
	Origin     string
	Monitoring Monitoring
	Rooms      Rooms
}

// Rooms controls pre-created room allocation.
type Rooms struct {
	IdLength int
	// EmptyTTL is how long a pre-created room may stay empty before
	// the sweeper removes it.
	EmptyTTL time.Duration
}

var relayConfigPath string

func NewRelayConfig() (conf RelayConfig) {
	if err := LoadConfig(&conf, relayConfigPath); err != nil {
		panic(err)
	}
	if conf.Relay.Rooms.IdLength == 0 {
		conf.Relay.Rooms.IdLength = 8
	}
	if conf.Relay.Rooms.EmptyTTL == 0 {
		conf.Relay.Rooms.EmptyTTL = 5 * time.Minute
	}
	return
}

func (c *RelayConfig) ParseFlags() {
	flag.StringVar(&c.Relay.Server.Address, "address", c.Relay.Server.Address, "Relay server address")
	flag.BoolVar(&c.Relay.Debug, "debug", c.Relay.Debug, "Enable debug logging")
	flag.IntVar(&c.Relay.Monitoring.Port, "monitoring.port", c.Relay.Monitoring.Port, "Monitoring server port")
	flag.StringVar(&relayConfigPath, "conf", relayConfigPath, "Set custom configuration file path")
	flag.Parse()
}
