package httpx

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/meetup-rtc/meetup/pkg/logger"
)

type Server struct {
	http.Server

	opts     Options
	listener net.Listener
	log      *logger.Logger
}

// NewServer creates an HTTP server bound to the address.
// The handler builder receives the server so routes can reference its
// final address.
func NewServer(address string, handler func(*Server) http.Handler, options ...Option) (*Server, error) {
	opts := &Options{
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	opts.override(options...)
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	server := &Server{
		Server: http.Server{
			Addr:         address,
			IdleTimeout:  opts.IdleTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		opts: *opts,
		log:  opts.Logger,
	}
	server.Handler = handler(server)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	server.listener = listener
	server.Addr = listener.Addr().String()
	return server, nil
}

func (s *Server) Run() { go s.run() }

func (s *Server) run() {
	s.log.Info().Msgf("Starting http server on %s", s.Addr)
	if err := s.Serve(s.listener); err != http.ErrServerClosed {
		s.log.Error().Err(err).Msg("http server stopped")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Debug().Msg("Shutting down http server")
	return s.Server.Shutdown(ctx)
}

func (s *Server) String() string { return "http::" + s.Addr }
