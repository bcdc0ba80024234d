package swiftbatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/joel-wright/swiftbatch/internal/pool"
	"github.com/joel-wright/swiftbatch/swiftapi"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// Pool kind names, used for lifecycle logging. The object pool is split
// into upload/update and download/delete halves so an upload-triggered
// segment cleanup never competes for the slots of in-flight uploads.
const (
	poolContainer = "container"
	poolSegment   = "segment"
	poolObjectUU  = "object-uu"
	poolObjectDD  = "object-dd"
)

// Service is the public entry point. It owns the connection factory and
// the default options every call starts from; worker pools are created
// lazily per operation and torn down when the operation's result sequence
// ends.
type Service struct {
	factory  swiftapi.ConnectionFactory
	defaults swifttypes.Options
	log      *zap.Logger
}

// New creates a Service bound to a connection factory. The given options
// become the service-level defaults, layered over the engine defaults and
// under any per-call options.
func New(factory swiftapi.ConnectionFactory, opts ...swifttypes.CallOption) *Service {
	return &Service{
		factory:  factory,
		defaults: swifttypes.DefaultOptions().Apply(opts...),
		log:      zap.NewNop(),
	}
}

// WithLogger sets the structured logger and returns the service.
func (s *Service) WithLogger(log *zap.Logger) *Service {
	if log != nil {
		s.log = log
	}
	return s
}

// options assembles the effective per-call view: engine defaults, service
// overrides, then call overrides. The result is never mutated afterwards.
func (s *Service) options(opts []swifttypes.CallOption) swifttypes.Options {
	return s.defaults.Apply(opts...)
}

func (s *Service) newManager(
	ctx context.Context,
	name string,
	workers int,
	rs *ResultSet,
) *pool.Manager {
	return pool.NewManager(ctx, name, s.factory, workers, 0, rs.sink(), s.log)
}

// connect obtains a short-lived connection for producer-side work such as
// account listings, outside any pool.
func (s *Service) connect(ctx context.Context) (swiftapi.Connection, error) {
	return s.factory(ctx)
}
