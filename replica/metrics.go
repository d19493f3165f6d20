package replica

import (
	"github.com/go-kit/kit/metrics"
	"github.com/numbleroot/lwwdict/crdt"
)

// Structs

// Metrics bundles the instruments a replica
// reports its activity to.
type Metrics struct {
	Adds    metrics.Counter
	Updates metrics.Counter
	Removes metrics.Counter
	Merges  metrics.Counter
	Keys    metrics.Gauge
}

type metricsService struct {
	service Service
	metrics *Metrics
}

// Functions

// NewMetricsService wraps s so that every operation
// is counted in m.
func NewMetricsService(s Service, m *Metrics) Service {

	return &metricsService{
		service: s,
		metrics: m,
	}
}

func (s *metricsService) Name() string {
	return s.service.Name()
}

func (s *metricsService) Now() float64 {
	return s.service.Now()
}

func (s *metricsService) Apply(op *crdt.Op) {

	s.service.Apply(op)

	switch op.Operation {
	case crdt.OpAdd:
		s.metrics.Adds.Add(1)
	case crdt.OpUpdate:
		s.metrics.Updates.Add(1)
	case crdt.OpRemove:
		s.metrics.Removes.Add(1)
	}

	s.metrics.Keys.Set(float64(s.service.Len()))
}

func (s *metricsService) Value(key string) (string, bool) {
	return s.service.Value(key)
}

func (s *metricsService) Merge(state crdt.State[string, string]) bool {

	changed := s.service.Merge(state)

	if changed {
		s.metrics.Merges.Add(1)
		s.metrics.Keys.Set(float64(s.service.Len()))
	}

	return changed
}

func (s *metricsService) State() crdt.State[string, string] {
	return s.service.State()
}

func (s *metricsService) Len() int {
	return s.service.Len()
}

func (s *metricsService) Save() error {
	return s.service.Save()
}
