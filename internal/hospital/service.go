// Package hospital implements the per-hospital FIFO admission queues.
package hospital

import (
	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/world"
)

// DefaultOverflowThreshold is the queue length above which a hospital reports overflow.
const DefaultOverflowThreshold = 10

// Admission records one survivor admitted at a hospital.
type Admission struct {
	Hospital   world.Position `json:"hospital"`
	SurvivorID agents.AgentID `json:"survivor_id"`
	Tick       uint64         `json:"tick"`
}

// Report is the outcome of one service round.
type Report struct {
	Admitted  []Admission
	Overflows []world.Position // Hospitals whose queue exceeded the threshold after service
}

// Queue is a read-only view of one hospital's waiting list.
type Queue struct {
	Hospital world.Position   `json:"hospital"`
	Waiting  []agents.AgentID `json:"waiting"`
}

// Service owns the waiting lists of every registered hospital.
type Service struct {
	rate      int
	threshold int
	order     []world.Position // registration order, used for iteration and tie-breaks
	queues    map[world.Position][]agents.AgentID
}

// NewService creates a service admitting up to rate survivors per hospital per tick.
func NewService(rate, overflowThreshold int) *Service {
	return &Service{
		rate:      max(rate, 0),
		threshold: max(overflowThreshold, 0),
		queues:    make(map[world.Position][]agents.AgentID),
	}
}

// Register adds a hospital. Registering the same position twice is ignored.
func (s *Service) Register(p world.Position) {
	if _, ok := s.queues[p]; ok {
		return
	}
	s.order = append(s.order, p)
	s.queues[p] = nil
}

// Rate returns the per-hospital admissions cap per tick.
func (s *Service) Rate() int { return s.rate }

// Hospitals returns hospital positions in registration order.
func (s *Service) Hospitals() []world.Position {
	out := make([]world.Position, len(s.order))
	copy(out, s.order)
	return out
}

// Resolve returns the hospital that serves arrivals at p: p itself when it is
// registered, otherwise the registered hospital with the smallest Manhattan
// distance. Ties go to the hospital registered first.
func (s *Service) Resolve(p world.Position) (world.Position, bool) {
	if _, ok := s.queues[p]; ok {
		return p, true
	}
	if len(s.order) == 0 {
		return world.Position{}, false
	}
	best := s.order[0]
	bestDist := world.Manhattan(p, best)
	for _, h := range s.order[1:] {
		if d := world.Manhattan(p, h); d < bestDist {
			best, bestDist = h, d
		}
	}
	return best, true
}

// Enqueue appends a survivor to the queue serving p. Returns the hospital used,
// or false when no hospital is registered.
func (s *Service) Enqueue(p world.Position, id agents.AgentID) (world.Position, bool) {
	h, ok := s.Resolve(p)
	if !ok {
		return world.Position{}, false
	}
	s.queues[h] = append(s.queues[h], id)
	return h, true
}

// Serve admits up to the rate from the front of every queue, in hospital
// registration order, stamping each admission with tick.
func (s *Service) Serve(tick uint64) Report {
	var r Report
	for _, h := range s.order {
		q := s.queues[h]
		n := s.rate
		if n > len(q) {
			n = len(q)
		}
		for _, id := range q[:n] {
			r.Admitted = append(r.Admitted, Admission{Hospital: h, SurvivorID: id, Tick: tick})
		}
		rest := make([]agents.AgentID, len(q)-n)
		copy(rest, q[n:])
		s.queues[h] = rest
		if len(rest) > s.threshold {
			r.Overflows = append(r.Overflows, h)
		}
	}
	return r
}

// QueueLen returns the number of survivors waiting at p.
func (s *Service) QueueLen(p world.Position) int {
	return len(s.queues[p])
}

// Waiting returns a copy of the queue at p, front first.
func (s *Service) Waiting(p world.Position) []agents.AgentID {
	q := s.queues[p]
	out := make([]agents.AgentID, len(q))
	copy(out, q)
	return out
}

// Queues returns a copy of every queue in registration order.
func (s *Service) Queues() []Queue {
	out := make([]Queue, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, Queue{Hospital: h, Waiting: s.Waiting(h)})
	}
	return out
}

// TotalWaiting returns the number of survivors enqueued across all hospitals.
func (s *Service) TotalWaiting() int {
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}
