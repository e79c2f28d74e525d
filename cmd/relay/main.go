package main

import (
	"context"
	goflag "flag"

	"github.com/meetup-rtc/meetup/pkg/config"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/monitoring"
	"github.com/meetup-rtc/meetup/pkg/os"
	"github.com/meetup-rtc/meetup/pkg/relay"
	"github.com/meetup-rtc/meetup/pkg/service"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewRelayConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Relay.Debug, "r", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	r, err := relay.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("relay init failed")
	}

	var services service.Group
	services.Add(r)
	if conf.Relay.Monitoring.IsEnabled() {
		services.Add(monitoring.New(conf.Relay.Monitoring, "r", log))
	}
	services.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := services.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
