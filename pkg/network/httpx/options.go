package httpx

import (
	"time"

	"github.com/meetup-rtc/meetup/pkg/logger"
)

type (
	Options struct {
		IdleTimeout  time.Duration
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		Logger       *logger.Logger
	}
	Option func(*Options)
)

func (o *Options) override(options ...Option) {
	for _, opt := range options {
		opt(o)
	}
}

func WithLogger(log *logger.Logger) Option { return func(opts *Options) { opts.Logger = log } }
func WithReadTimeout(t time.Duration) Option {
	return func(opts *Options) { opts.ReadTimeout = t }
}
func WithWriteTimeout(t time.Duration) Option {
	return func(opts *Options) { opts.WriteTimeout = t }
}
