package service

import (
	"context"
	"errors"
	"fmt"
)

// Service is anything a binary may host.
type Service interface{}

// RunnableService is a service with its own lifecycle. Run must not
// block; Shutdown stops the service within the context deadline.
type RunnableService interface {
	Service

	Run()
	Shutdown(ctx context.Context) error
}

// Group starts and stops a set of services together, in the order they
// were added.
type Group struct {
	list []Service
}

func (g *Group) Add(services ...Service) { g.list = append(g.list, services...) }

func (g *Group) Start() {
	for _, s := range g.list {
		if v, ok := s.(RunnableService); ok {
			v.Run()
		}
	}
}

// Shutdown stops every runnable service, collecting the failures
// instead of aborting on the first one.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range g.list {
		v, ok := s.(RunnableService)
		if !ok {
			continue
		}
		if err := v.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("couldn't stop %v: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
