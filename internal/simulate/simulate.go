// Package simulate produces mock load-test results. No traffic is generated.
package simulate

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"cdrpulse/internal/models"
)

// DefaultDelay is how long a simulated run takes before results are available.
const DefaultDelay = 1500 * time.Millisecond

// RequestsPerUserMinute scales total requests from load shape.
const RequestsPerUserMinute = 50

// Generator draws mock results from a random source. It is safe for
// concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator. A nil rng uses a randomly seeded source.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed uint64) *Generator {
	return NewGenerator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Generate returns results for a run of virtualUsers over duration minutes.
func (g *Generator) Generate(virtualUsers, duration int) models.Results {
	g.mu.Lock()
	defer g.mu.Unlock()

	res := models.Results{
		AvgResponseTime:   float64(g.rng.IntN(300) + 150),
		P95ResponseTime:   float64(g.rng.IntN(200) + 300),
		P99ResponseTime:   float64(g.rng.IntN(200) + 450),
		ErrorRate:         g.rng.Float64() * 2,
		RequestsPerSecond: float64(g.rng.IntN(30) + 40),
		TotalRequests:     int64(virtualUsers) * int64(duration) * RequestsPerUserMinute,
	}
	res.SuccessfulRequests = int64(math.Floor(float64(res.TotalRequests) * (1 - res.ErrorRate/100)))
	res.FailedRequests = res.TotalRequests - res.SuccessfulRequests
	return res
}
