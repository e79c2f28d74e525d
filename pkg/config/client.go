package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type ClientConfig struct {
	Client  Client
	Webrtc  Webrtc
	Version Version
}

type Client struct {
	Debug      bool
	Monitoring Monitoring
	// Relay holds the connection channel endpoint.
	Relay struct {
		Address  string
		Endpoint string
		Secure   bool
	}
	Room string
	Name string
	// ChatOnly joins without sending any media; the links are made
	// receive-only.
	ChatOnly  bool
	Reconnect Reconnect
}

// Reconnect bounds the channel re-dial schedule.
type Reconnect struct {
	Attempts int
	Delay    time.Duration
}

var clientConfigPath string

func NewClientConfig() (conf ClientConfig) {
	if err := LoadConfig(&conf, clientConfigPath); err != nil {
		panic(err)
	}
	if conf.Client.Reconnect.Attempts == 0 {
		conf.Client.Reconnect.Attempts = 5
	}
	if conf.Client.Reconnect.Delay == 0 {
		conf.Client.Reconnect.Delay = time.Second
	}
	if conf.Client.Relay.Endpoint == "" {
		conf.Client.Relay.Endpoint = "/ws"
	}
	return
}

func (c *ClientConfig) ParseFlags() {
	flag.StringVar(&c.Client.Relay.Address, "relay", c.Client.Relay.Address, "Relay server address")
	flag.StringVar(&c.Client.Room, "room", c.Client.Room, "Room id to join (empty makes a new room)")
	flag.StringVar(&c.Client.Name, "name", c.Client.Name, "Display name")
	flag.BoolVar(&c.Client.ChatOnly, "chat-only", c.Client.ChatOnly, "Join without sending media")
	flag.BoolVar(&c.Client.Debug, "debug", c.Client.Debug, "Enable debug logging")
	flag.StringVar(&clientConfigPath, "conf", clientConfigPath, "Set custom configuration file path")
	flag.Parse()
}
