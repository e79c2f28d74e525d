package main

import (
	"context"
	goflag "flag"
	"time"

	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/client"
	"github.com/meetup-rtc/meetup/pkg/config"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/monitoring"
	"github.com/meetup-rtc/meetup/pkg/os"
	"github.com/meetup-rtc/meetup/pkg/service"
	"github.com/pion/webrtc/v3/pkg/media"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewClientConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Client.Debug, "m", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	c, err := client.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("client init failed")
	}
	c.OnChat = func(msg api.Chat) {
		log.Info().Msgf("[%s] %s", msg.Sender, msg.Text)
	}

	stop := os.ExpectTermination()
	if !conf.Client.ChatOnly {
		// Placeholder capture source until a real device pipeline is
		// attached: opus DTX silence plus an empty VP8 payload keep the
		// outbound tracks ticking so remote peers render something.
		go func() {
			silence := media.Sample{Data: []byte{0xf8, 0xff, 0xfe}, Duration: 20 * time.Millisecond}
			blank := media.Sample{Data: make([]byte, 16), Duration: 100 * time.Millisecond}
			audioTick := time.NewTicker(silence.Duration)
			videoTick := time.NewTicker(blank.Duration)
			defer audioTick.Stop()
			defer videoTick.Stop()
			for {
				select {
				case <-audioTick.C:
					if err := c.WriteAudio(silence); err != nil {
						log.Error().Err(err).Msg("audio sample dropped")
					}
				case <-videoTick.C:
					if err := c.WriteVideo(blank); err != nil {
						log.Error().Err(err).Msg("video sample dropped")
					}
				case <-stop:
					return
				}
			}
		}()
	}

	var services service.Group
	services.Add(c)
	if conf.Client.Monitoring.IsEnabled() {
		services.Add(monitoring.New(conf.Client.Monitoring, "m", log))
	}
	services.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := services.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-stop
	cancel()
}
