package replica

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/numbleroot/lwwdict/crdt"
)

// Structs

type loggingService struct {
	logger  log.Logger
	service Service
}

// Functions

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {

	return &loggingService{
		logger:  log.With(logger, "replica", s.Name()),
		service: s,
	}
}

// Name passes through to the wrapped service.
func (s *loggingService) Name() string {
	return s.service.Name()
}

// Now passes through to the wrapped service.
func (s *loggingService) Now() float64 {
	return s.service.Now()
}

// Apply wraps this service's Apply method
// with added logging capabilities.
func (s *loggingService) Apply(op *crdt.Op) {

	s.service.Apply(op)

	level.Debug(s.logger).Log(
		"method", "Apply",
		"op", op.Operation,
		"key", op.Key,
		"ts", op.Timestamp,
	)
}

// Value wraps this service's Value method
// with added logging capabilities.
func (s *loggingService) Value(key string) (string, bool) {

	value, found := s.service.Value(key)

	level.Debug(s.logger).Log(
		"method", "Value",
		"key", key,
		"found", found,
	)

	return value, found
}

// Merge wraps this service's Merge method
// with added logging capabilities.
func (s *loggingService) Merge(state crdt.State[string, string]) bool {

	changed := s.service.Merge(state)

	level.Debug(s.logger).Log(
		"method", "Merge",
		"additions", len(state.Additions),
		"removals", len(state.Removals),
		"changed", changed,
	)

	return changed
}

// State passes through to the wrapped service.
func (s *loggingService) State() crdt.State[string, string] {
	return s.service.State()
}

// Len passes through to the wrapped service.
func (s *loggingService) Len() int {
	return s.service.Len()
}

// Save wraps this service's Save method
// with added logging capabilities.
func (s *loggingService) Save() error {

	err := s.service.Save()

	logger := log.With(s.logger, "method", "Save")

	if err != nil {
		level.Error(logger).Log("msg", "failed to save replica state", "err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}
