package rpc

import (
	"errors"
	"sync"
	"time"
)

// ErrNoHealthyRPC is returned when no healthy RPC endpoint is available.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm defines how an RPC endpoint is selected.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"

	// Discard nodes more than this many blocks behind the best.
	staleBlockThreshold = 3
)

// Endpoint is one RPC URL with the attributes measured by Probe.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Healthy     bool
	Err         error
}

// Picker selects an RPC endpoint according to the configured algorithm.
type Picker struct {
	algo    Algorithm
	mu      sync.Mutex
	rrIndex int
}

// NewPicker creates a new Picker with the given algorithm. An empty
// algorithm means fastest.
func NewPicker(algo Algorithm) *Picker {
	if algo == "" {
		algo = AlgorithmFastest
	}
	return &Picker{algo: algo}
}

// Pick selects an endpoint from the provided list according to the algorithm.
func (p *Picker) Pick(endpoints []Endpoint) (*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoHealthyRPC
	}

	switch p.algo {
	case AlgorithmRoundRobin:
		return p.pickRoundRobin(endpoints)
	case AlgorithmFailover:
		return pickFailover(endpoints)
	default:
		return pickFastest(endpoints)
	}
}

// pickFastest selects the healthy endpoint with the best latency and block
// recency score, ignoring nodes that lag behind.
func pickFastest(endpoints []Endpoint) (*Endpoint, error) {
	candidates := healthyEndpoints(endpoints)
	bestBlock := highestBlock(candidates)

	var winner *Endpoint
	var bestScore float64
	for _, e := range candidates {
		if bestBlock-e.BlockNumber > staleBlockThreshold {
			continue
		}
		s := score(e, bestBlock)
		if winner == nil || s > bestScore {
			winner = e
			bestScore = s
		}
	}
	if winner == nil {
		return nil, ErrNoHealthyRPC
	}
	return winner, nil
}

// pickRoundRobin cycles through all healthy endpoints.
func (p *Picker) pickRoundRobin(endpoints []Endpoint) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := healthyEndpoints(endpoints)
	if len(healthy) == 0 {
		return nil, ErrNoHealthyRPC
	}

	idx := p.rrIndex % len(healthy)
	p.rrIndex = (idx + 1) % len(healthy)
	return healthy[idx], nil
}

// pickFailover returns the first healthy endpoint in configured order.
func pickFailover(endpoints []Endpoint) (*Endpoint, error) {
	for i := range endpoints {
		if endpoints[i].Healthy {
			return &endpoints[i], nil
		}
	}
	return nil, ErrNoHealthyRPC
}

// --- scoring ---

func score(e *Endpoint, bestBlock uint64) float64 {
	var s float64

	// Latency score: higher = faster.
	if ms := e.Latency.Milliseconds(); ms > 0 {
		s += 1000.0 / float64(ms)
	} else if e.Latency > 0 {
		s += 1000.0
	}

	// loses 1 point per block behind
	s += float64(10) - float64(bestBlock-e.BlockNumber)
	return s
}

func highestBlock(endpoints []*Endpoint) uint64 {
	var best uint64
	for _, e := range endpoints {
		if e.BlockNumber > best {
			best = e.BlockNumber
		}
	}
	return best
}

func healthyEndpoints(endpoints []Endpoint) []*Endpoint {
	var out []*Endpoint
	for i := range endpoints {
		if endpoints[i].Healthy {
			out = append(out, &endpoints[i])
		}
	}
	return out
}
