package runner

import (
	"math/rand"
	"time"
)

// defaultEndpoints is the fixed set of paths each probe picks from.
var defaultEndpoints = []string{"/", "/health", "/users", "/version", "/slo-config"}

// EndpointSet picks the endpoint for each probe. Random selection is the
// production behavior; sequential mode cycles the set in order for
// deterministic tests.
type EndpointSet struct {
	endpoints  []string
	rng        *rand.Rand
	sequential bool
	next       int
}

// NewEndpointSet returns the default endpoint set with random selection.
// A nil rng gets a time-seeded source.
func NewEndpointSet(rng *rand.Rand) *EndpointSet {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &EndpointSet{endpoints: defaultEndpoints, rng: rng}
}

// NewSequentialEndpointSet cycles through the given endpoints in order.
func NewSequentialEndpointSet(endpoints []string) *EndpointSet {
	return &EndpointSet{endpoints: endpoints, sequential: true}
}

// Pick returns the endpoint for the next probe.
func (s *EndpointSet) Pick() string {
	if s.sequential {
		e := s.endpoints[s.next%len(s.endpoints)]
		s.next++
		return e
	}
	return s.endpoints[s.rng.Intn(len(s.endpoints))]
}

// Endpoints returns the paths this set picks from.
func (s *EndpointSet) Endpoints() []string {
	return s.endpoints
}
